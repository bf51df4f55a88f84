package importer

// reader.go turns an input file into a CSV record stream.
//
// The raw bytes pass through, in order: a size cap, UTF-8 BOM removal,
// optional transcoding from windows-1251, invalid UTF-8 replacement and a
// byte counter for progress. Nothing is buffered beyond a few kilobytes, so
// the 50MB cap is about rejecting mistakes, not about memory.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// encodingProbeSize is how many leading bytes are checked for valid UTF-8.
const encodingProbeSize = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Input is one file to import.
type Input struct {
	Name   string
	Size   int64 // 0 if unknown
	Reader io.Reader
}

// OpenFile opens path for import after checking that it exists and fits the
// size cap. The caller must close the returned file.
func OpenFile(path string, maxSize int64) (Input, *os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Input{}, nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Input{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Input{}, nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return Input{}, nil, tooLarge(info.Size(), maxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return Input{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return Input{Name: info.Name(), Size: info.Size(), Reader: f}, f, nil
}

func tooLarge(size, limit int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: maximum %.2fMB", ErrFileTooLarge, float64(limit)/(1<<20))
	}
	return fmt.Errorf("%w: %.2fMB, maximum %.2fMB", ErrFileTooLarge, float64(size)/(1<<20), float64(limit)/(1<<20))
}

// recordSource yields CSV records from an input.
type recordSource struct {
	csv      *csv.Reader
	counter  *countingReader
	warnings []string
}

// newRecordSource builds the reader pipeline for in.
func newRecordSource(in Input, opts Options) (*recordSource, error) {
	if in.Reader == nil {
		return nil, ErrNoFile
	}

	limited := &sizeLimitReader{r: in.Reader, limit: opts.MaxFileSize}
	br := bufio.NewReaderSize(limited, 4096)

	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	var (
		r        io.Reader = br
		warnings []string
	)
	switch normalizeEncoding(opts.Encoding) {
	case EncodingWindows1251:
		r = charmap.Windows1251.NewDecoder().Reader(br)
	default:
		head, err := br.Peek(encodingProbeSize)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if !validUTF8Prefix(head, err == io.EOF) {
			warnings = append(warnings, "file may not be in UTF-8 encoding")
		}
		r = newUTF8Sanitizer(br)
	}

	counter := &countingReader{r: r, total: in.Size}

	cr := csv.NewReader(counter)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return &recordSource{csv: cr, counter: counter, warnings: warnings}, nil
}

// Read returns the next record and its 1-based line number.
func (s *recordSource) Read() ([]string, int, error) {
	rec, err := s.csv.Read()
	if err != nil {
		return nil, 0, err
	}
	line, _ := s.csv.FieldPos(0)
	return rec, line, nil
}

// validUTF8Prefix checks a probe of the file. A multi-byte sequence cut off
// by the probe boundary does not count as invalid.
func validUTF8Prefix(head []byte, atEOF bool) bool {
	if !atEOF {
		head = head[:len(head)-incompleteTrailingBytes(head)]
	}
	return utf8.Valid(head)
}

// sizeLimitReader fails with ErrFileTooLarge once more than limit bytes are read.
type sizeLimitReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.limit > 0 && l.read > l.limit {
		return n, tooLarge(0, l.limit)
	}
	return n, err
}

// countingReader tracks bytes read for progress reporting.
type countingReader struct {
	r     io.Reader
	read  int64
	total int64 // 0 if unknown
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

// Percent returns read progress from 0 to 100, or 0 if the size is unknown.
func (c *countingReader) Percent() int {
	if c.total <= 0 {
		return 0
	}
	p := int(c.read * 100 / c.total)
	if p > 100 {
		p = 100
	}
	return p
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming.
// A single-byte replacement keeps the output no longer than the input, so
// sanitizing can happen in place.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	// Carry over a sequence split by the previous read
	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && r == utf8.RuneError && size == 1 && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data start a
// multi-byte sequence that is not finished yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Not a continuation byte, so nothing is pending
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the sequence length announced by a leading byte.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// isIncompleteRune reports whether data is a valid start of a longer sequence.
func isIncompleteRune(data []byte) bool {
	if len(data) == 0 || len(data) >= utf8.UTFMax {
		return false
	}
	want := runeLen(data[0])
	if want <= len(data) {
		return false
	}
	for _, b := range data[1:] {
		if b&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// cleanCell trims a cell and unwraps the ="..." formula spreadsheets use to
// keep leading zeros. Quotes inside a value are part of it (TV-55").
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
