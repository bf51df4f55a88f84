package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/taxonomy-import/internal/config"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"update", ModeUpdate, false},
		{" Replace ", ModeReplace, false},
		{"merge", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("ParseMode(%q) error = %v, want ErrInvalidOptions", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultOptions_Valid(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() = %v", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr string
	}{
		{"unknown mode", func(o *Options) { o.Mode = "merge" }, "mode must be"},
		{"batch size too small", func(o *Options) { o.BatchSize = 0 }, "batch size must be between 1 and 1000"},
		{"batch size too large", func(o *Options) { o.BatchSize = 1001 }, "batch size must be between 1 and 1000"},
		{"negative skip lines", func(o *Options) { o.SkipLines = -1 }, "skip lines"},
		{"quote delimiter", func(o *Options) { o.Delimiter = '"' }, "invalid delimiter"},
		{"zero file size", func(o *Options) { o.MaxFileSize = 0 }, "max file size"},
		{"unknown encoding", func(o *Options) { o.Encoding = "latin-1" }, "unsupported encoding"},
		{"cp1251 alias", func(o *Options) { o.Encoding = "CP1251" }, ""},
		{"batch size max", func(o *Options) { o.BatchSize = MaxBatchSize }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("Validate() = %v, want ErrInvalidOptions", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestOptions_ValidateReportsAll(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 0
	opts.SkipLines = -2
	err := opts.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"batch size", "skip lines"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.ImportConfig{
		Mode:        "replace",
		DryRun:      true,
		Delimiter:   ";",
		SkipLines:   2,
		BatchSize:   50,
		MaxFileSize: 1 << 20,
		Encoding:    "cp1251",
		LogDir:      "logs",
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}

	want := Options{
		Mode:        ModeReplace,
		DryRun:      true,
		Delimiter:   ';',
		SkipLines:   2,
		BatchSize:   50,
		MaxFileSize: 1 << 20,
		Encoding:    EncodingWindows1251,
		LogDir:      "logs",
	}
	if opts != want {
		t.Errorf("OptionsFromConfig() = %+v, want %+v", opts, want)
	}
}

func TestOptionsFromConfig_Errors(t *testing.T) {
	base := config.ImportConfig{Mode: "update", Delimiter: ",", BatchSize: 100, MaxFileSize: 1, Encoding: "utf-8"}

	for _, delim := range []string{"", ";;", "ab"} {
		cfg := base
		cfg.Delimiter = delim
		if _, err := OptionsFromConfig(cfg); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("delimiter %q: error = %v, want ErrInvalidOptions", delim, err)
		}
	}

	cfg := base
	cfg.Mode = "append"
	if _, err := OptionsFromConfig(cfg); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("mode append: error = %v, want ErrInvalidOptions", err)
	}
}
