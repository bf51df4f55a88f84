package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// reportTimeLayout names report files; one per second is enough for a CLI.
const reportTimeLayout = "2006-01-02_15-04-05"

// NamespaceCount is the number of terms queued for one namespace.
type NamespaceCount struct {
	Namespace string `json:"namespace"`
	Count     int    `json:"count"`
}

// Stats are the counters of one run.
type Stats struct {
	TotalRows         int              `json:"total_rows"`
	ProductsFound     int              `json:"products_found"`
	ProductsNotFound  int              `json:"products_not_found"`
	ProductsUpdated   int              `json:"products_updated"`
	TermsUpdated      int              `json:"terms_updated"`
	TermsSkipped      int              `json:"terms_skipped"`
	TermsPerNamespace []NamespaceCount `json:"terms_per_namespace"`
	DurationMS        int64            `json:"duration_ms"`
	RowsPerSecond     float64          `json:"rows_per_second"`
}

// Report is the outcome of one import run.
type Report struct {
	RunID      string    `json:"id"`
	FileName   string    `json:"file_name"`
	Mode       Mode      `json:"mode"`
	DryRun     bool      `json:"dry_run"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Namespaces []string `json:"namespaces"`
	Stats      Stats    `json:"stats"`

	// Failures holds resolution failures keyed by FailureKind.String().
	Failures         map[string][]string `json:"failures"`
	ProductsNotFound []string            `json:"products_not_found"`
	AlreadyExisting  []string            `json:"already_existing"`
	DuplicateSKUs    []string            `json:"duplicate_skus"`
	Warnings         []string            `json:"warnings"`

	// LogPath is the written text report, empty if none was written.
	LogPath string `json:"log_path,omitempty"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureCount returns the number of resolution failures.
func (r *Report) FailureCount() int {
	n := 0
	for _, msgs := range r.Failures {
		n += len(msgs)
	}
	return n
}

// HasErrors reports whether the run recorded anything worth reviewing.
func (r *Report) HasErrors() bool {
	return r.FailureCount() > 0 || len(r.ProductsNotFound) > 0 || len(r.AlreadyExisting) > 0
}

// WriteText writes the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	mode := strings.ToUpper(string(r.Mode))
	if r.DryRun {
		mode += " (DRY RUN)"
	}

	b.WriteString("=== TAXONOMY UPDATE RESULTS ===\n")
	fmt.Fprintf(&b, "Date: %s\n", r.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "CSV File: %s\n", r.FileName)
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	fmt.Fprintf(&b, "Execution Time: %.2f seconds\n", r.Duration().Seconds())
	b.WriteString("\n")

	b.WriteString("STATISTICS:\n")
	fmt.Fprintf(&b, "- Total rows processed: %d\n", r.Stats.TotalRows)
	fmt.Fprintf(&b, "- Products found: %d\n", r.Stats.ProductsFound)
	fmt.Fprintf(&b, "- Products not found: %d\n", r.Stats.ProductsNotFound)
	fmt.Fprintf(&b, "- Products updated: %d\n", r.Stats.ProductsUpdated)
	fmt.Fprintf(&b, "- Terms updated: %d\n", r.Stats.TermsUpdated)
	fmt.Fprintf(&b, "- Terms skipped (already existed): %d\n", r.Stats.TermsSkipped)
	if len(r.Stats.TermsPerNamespace) > 0 {
		b.WriteString("- Terms per namespace:\n")
		for _, nc := range r.Stats.TermsPerNamespace {
			fmt.Fprintf(&b, "  * %s: %d\n", nc.Namespace, nc.Count)
		}
	}
	if r.Stats.TotalRows > 0 {
		fmt.Fprintf(&b, "- Processing rate: %.2f rows/sec\n", r.Stats.RowsPerSecond)
	}
	b.WriteString("\n")

	if r.HasErrors() {
		b.WriteString("ERRORS:\n")
		writeSection(&b, "Products not found", r.ProductsNotFound)
		for _, kind := range taxonomy.FailureKinds {
			writeSection(&b, kind.Label(), r.Failures[kind.String()])
		}
		writeSection(&b, "Already existing terms (skipped)", r.AlreadyExisting)
	}

	if len(r.DuplicateSKUs) > 0 || len(r.Warnings) > 0 {
		b.WriteString("WARNINGS:\n")
		writeSection(&b, "Duplicate SKUs", r.DuplicateSKUs)
		writeSection(&b, "File warnings", r.Warnings)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, l := range lines {
		b.WriteString("- " + l + "\n")
	}
	b.WriteString("\n")
}

// WriteFile writes the text report into dir and records its path.
func (r *Report) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory %s: %w", dir, err)
	}

	name := "taxonomy_update_results_" + r.StartedAt.Format(reportTimeLayout) + ".log"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report %s: %w", path, err)
	}
	if err := r.WriteText(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}

	r.LogPath = path
	return path, nil
}
