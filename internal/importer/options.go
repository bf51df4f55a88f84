package importer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/taxonomy-import/internal/config"
)

// Mode selects how resolved terms are combined with a product's existing ones.
type Mode string

const (
	// ModeUpdate adds terms and leaves already attached terms in place.
	ModeUpdate Mode = "update"
	// ModeReplace replaces a product's terms in every namespace of the file.
	ModeReplace Mode = "replace"
)

// ParseMode converts a user supplied mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeUpdate, ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: mode must be either update or replace, got %q", ErrInvalidOptions, s)
	}
}

// Encodings accepted for input files.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1251 = "windows-1251"
)

// Batch size bounds.
const (
	MinBatchSize = 1
	MaxBatchSize = 1000
)

// DefaultMaxFileSize is the input size cap when none is configured.
const DefaultMaxFileSize int64 = 50 << 20

// Options control a single import run.
type Options struct {
	Mode        Mode
	DryRun      bool
	Verbose     bool
	Delimiter   rune
	SkipLines   int
	BatchSize   int
	MaxFileSize int64
	Encoding    string

	// LogDir receives the text report. Empty disables the report file.
	LogDir string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Mode:        ModeUpdate,
		Delimiter:   ',',
		BatchSize:   100,
		MaxFileSize: DefaultMaxFileSize,
		Encoding:    EncodingUTF8,
	}
}

// OptionsFromConfig builds options from the import configuration section.
func OptionsFromConfig(cfg config.ImportConfig) (Options, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return Options{}, err
	}

	delim, size := utf8.DecodeRuneInString(cfg.Delimiter)
	if size == 0 || size != len(cfg.Delimiter) {
		return Options{}, fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalidOptions, cfg.Delimiter)
	}

	opts := Options{
		Mode:        mode,
		DryRun:      cfg.DryRun,
		Delimiter:   delim,
		SkipLines:   cfg.SkipLines,
		BatchSize:   cfg.BatchSize,
		MaxFileSize: cfg.MaxFileSize,
		Encoding:    normalizeEncoding(cfg.Encoding),
		LogDir:      cfg.LogDir,
	}
	return opts, opts.Validate()
}

// Validate reports every invalid option at once.
func (o Options) Validate() error {
	var errs []string

	if o.Mode != ModeUpdate && o.Mode != ModeReplace {
		errs = append(errs, fmt.Sprintf("mode must be either update or replace, got %q", o.Mode))
	}
	if o.BatchSize < MinBatchSize || o.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Sprintf("batch size must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, o.BatchSize))
	}
	if o.SkipLines < 0 {
		errs = append(errs, fmt.Sprintf("skip lines must be non-negative, got %d", o.SkipLines))
	}
	if o.Delimiter == 0 || o.Delimiter == '"' || o.Delimiter == '\r' || o.Delimiter == '\n' || o.Delimiter == utf8.RuneError {
		errs = append(errs, fmt.Sprintf("invalid delimiter %q", o.Delimiter))
	}
	if o.MaxFileSize <= 0 {
		errs = append(errs, "max file size must be positive")
	}
	switch normalizeEncoding(o.Encoding) {
	case EncodingUTF8, EncodingWindows1251:
	default:
		errs = append(errs, fmt.Sprintf("unsupported encoding %q", o.Encoding))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(errs, "; "))
	}
	return nil
}

func normalizeEncoding(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8
	case "windows-1251", "cp1251":
		return EncodingWindows1251
	default:
		return s
	}
}
