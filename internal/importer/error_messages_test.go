package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"invalid options", fmt.Errorf("%w: batch size must be between 1 and 1000, got 0", ErrInvalidOptions), "VAL001"},
		{"invalid header", fmt.Errorf("%w: first column must be sku", ErrInvalidHeader), "VAL002"},
		{"unknown namespace", fmt.Errorf("%w: %q", ErrUnknownNamespace, "pa_size"), "VAL003"},
		{"empty value", taxonomy.ErrEmptyValue, "VAL004"},
		{"file too large", tooLarge(100<<20, 50<<20), "FILE001"},
		{"csv parse error", errors.New(`read row: parse error on line 3, column 5: bare " in non-quoted field`), "FILE002"},
		{"no file", ErrNoFile, "FILE004"},
		{"empty file", ErrEmptyFile, "FILE005"},
		{"file not found", fmt.Errorf("%w: /tmp/x.csv", ErrFileNotFound), "FILE006"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB001"},
		{"deadlock", errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), "DB003"},
		{"foreign key", errors.New(`insert or update on table "product_terms" violates foreign key constraint`), "DB004"},
		{"limiter", ErrTooManyImports, "IMP001"},
		{"canceled", fmt.Errorf("line 4: %w", context.Canceled), "IMP003"},
		{"deadline", context.DeadlineExceeded, "IMP004"},
		{"unmatched", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_CaseInsensitive(t *testing.T) {
	if got := MapError(errors.New("Connection Reset by peer")); got.Code != "DB002" {
		t.Errorf("Code = %q, want DB002", got.Code)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrEmptyFile)
	if !strings.HasSuffix(got, "(FILE005)") {
		t.Errorf("FormatUserError() = %q, want code suffix", got)
	}
	if !strings.HasPrefix(got, "The file is empty. ") {
		t.Errorf("FormatUserError() = %q, want message prefix", got)
	}
}

func TestErrorPatterns_Complete(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range errorPatterns {
		if p.pattern != strings.ToLower(p.pattern) {
			t.Errorf("pattern %q must be lowercase", p.pattern)
		}
		if p.msg.Message == "" || p.msg.Action == "" || p.msg.Code == "" {
			t.Errorf("pattern %q has an incomplete message", p.pattern)
		}
		if seen[p.pattern] {
			t.Errorf("duplicate pattern %q", p.pattern)
		}
		seen[p.pattern] = true
	}
}
