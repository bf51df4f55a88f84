package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/taxonomy-import/internal/importer"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("catalog: import run not found")

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the stored summary of one import run.
type Run struct {
	ID               uuid.UUID
	FileName         string
	Mode             string
	DryRun           bool
	Status           string
	TotalRows        int
	ProductsUpdated  int
	ProductsNotFound int
	TermsUpdated     int
	TermsSkipped     int
	Failures         int
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// RecordRun stores a run summary. Recording the same id twice overwrites it.
func (c *Catalog) RecordRun(ctx context.Context, r Run) error {
	errText := pgtype.Text{String: r.Error, Valid: r.Error != ""}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO import_runs (
			id, file_name, mode, dry_run, status, total_rows, products_updated,
			products_not_found, terms_updated, terms_skipped, failures, error,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_rows = EXCLUDED.total_rows,
			products_updated = EXCLUDED.products_updated,
			products_not_found = EXCLUDED.products_not_found,
			terms_updated = EXCLUDED.terms_updated,
			terms_skipped = EXCLUDED.terms_skipped,
			failures = EXCLUDED.failures,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		pgtype.UUID{Bytes: r.ID, Valid: true}, r.FileName, r.Mode, r.DryRun, r.Status,
		r.TotalRows, r.ProductsUpdated, r.ProductsNotFound, r.TermsUpdated, r.TermsSkipped,
		r.Failures, errText, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record import run %s: %w", r.ID, err)
	}
	return nil
}

// RunFromReport summarizes an import report for storage.
func RunFromReport(rep *importer.Report) (Run, error) {
	id, err := uuid.Parse(rep.RunID)
	if err != nil {
		return Run{}, fmt.Errorf("parse run id %q: %w", rep.RunID, err)
	}

	status := RunCompleted
	if rep.Status == importer.StatusFailed {
		status = RunFailed
	}

	return Run{
		ID:               id,
		FileName:         rep.FileName,
		Mode:             string(rep.Mode),
		DryRun:           rep.DryRun,
		Status:           status,
		TotalRows:        rep.Stats.TotalRows,
		ProductsUpdated:  rep.Stats.ProductsUpdated,
		ProductsNotFound: rep.Stats.ProductsNotFound,
		TermsUpdated:     rep.Stats.TermsUpdated,
		TermsSkipped:     rep.Stats.TermsSkipped,
		Failures:         rep.FailureCount(),
		Error:            rep.Error,
		StartedAt:        rep.StartedAt,
		FinishedAt:       rep.FinishedAt,
	}, nil
}

// RecordReport stores the summary of an import report.
func (c *Catalog) RecordReport(ctx context.Context, rep *importer.Report) error {
	run, err := RunFromReport(rep)
	if err != nil {
		return err
	}
	return c.RecordRun(ctx, run)
}

// GetRun loads a stored run summary.
func (c *Catalog) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var (
		r       Run
		errText pgtype.Text
	)
	err := c.pool.QueryRow(ctx, `
		SELECT file_name, mode, dry_run, status, total_rows, products_updated,
			products_not_found, terms_updated, terms_skipped, failures, error,
			started_at, finished_at
		FROM import_runs WHERE id = $1`, pgtype.UUID{Bytes: id, Valid: true},
	).Scan(
		&r.FileName, &r.Mode, &r.DryRun, &r.Status, &r.TotalRows, &r.ProductsUpdated,
		&r.ProductsNotFound, &r.TermsUpdated, &r.TermsSkipped, &r.Failures, &errText,
		&r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get import run %s: %w", id, err)
	}

	r.ID = id
	r.Error = errText.String
	return r, nil
}
