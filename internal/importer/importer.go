// Package importer assigns catalog terms to products from a CSV file.
//
// The file has a sku column followed by one column per namespace. Each cell
// holds a term name or a "parent > child" path that is resolved through the
// taxonomy package. A run validates the header, prepares every row into a
// pending change set, applies the change set in batched transactions unless
// it is a dry run, and finishes with a report.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// contextCheckInterval is how many rows are read between cancellation checks.
const contextCheckInterval = 100

// skuColumn is the required name of the first header cell.
const skuColumn = "sku"

// Catalog is the part of the catalog an import needs.
type Catalog interface {
	taxonomy.Store

	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	ProductIDBySKU(ctx context.Context, sku string) (int64, bool, error)
	ProductTermIDs(ctx context.Context, productID int64, namespace string) ([]taxonomy.NodeID, error)
	ApplyBatch(ctx context.Context, batch []taxonomy.Assignment, replace bool) error
	RefreshTermCounts(ctx context.Context, namespace string) error
}

// flusher is implemented by caching stores that must be dropped after writes.
type flusher interface {
	Flush()
}

// Importer runs imports against one catalog.
type Importer struct {
	catalog  Catalog
	store    taxonomy.Store
	opts     Options
	progress ProgressFunc
	now      func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithStore resolves terms through store instead of the catalog itself,
// typically a cache in front of it.
func WithStore(store taxonomy.Store) Option {
	return func(im *Importer) { im.store = store }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(im *Importer) { im.progress = fn }
}

// New creates an importer. It fails if opts are invalid.
func New(catalog Catalog, opts Options, options ...Option) (*Importer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	im := &Importer{
		catalog: catalog,
		store:   catalog,
		opts:    opts,
		now:     time.Now,
	}
	for _, o := range options {
		o(im)
	}
	return im, nil
}

// pendingProduct is the change set of one product, keyed by namespace.
type pendingProduct struct {
	productID  int64
	sku        string
	namespaces []string
	terms      map[string][]taxonomy.NodeID
}

// add appends id to the namespace's ordered set. It reports false if the
// term was already queued.
func (p *pendingProduct) add(namespace string, id taxonomy.NodeID) bool {
	ids, ok := p.terms[namespace]
	if !ok {
		p.namespaces = append(p.namespaces, namespace)
	}
	if slices.Contains(ids, id) {
		return false
	}
	p.terms[namespace] = append(ids, id)
	return true
}

// run holds the state of one Run call.
type run struct {
	im       *Importer
	report   *Report
	resolver *taxonomy.Resolver
	log      *slog.Logger

	header     []string
	namespaces []string
	nsCounts   map[string]int

	pending []*pendingProduct
	bySKU   map[string]*pendingProduct
	seenSKU map[string]bool
	dupSKU  map[string]bool

	source *recordSource
}

// Run imports in and returns the report.
//
// The report is returned even when err is non-nil, as long as the run got
// far enough to have an id. Resolution failures are not errors: they are
// listed in the report and the run continues.
func (im *Importer) Run(ctx context.Context, in Input) (*Report, error) {
	runID := uuid.New()
	ctx = logging.WithRunID(ctx, runID.String())

	r := &run{
		im: im,
		report: &Report{
			RunID:     runID.String(),
			FileName:  in.Name,
			Mode:      im.opts.Mode,
			DryRun:    im.opts.DryRun,
			StartedAt: im.now(),
			Failures:  map[string][]string{},
		},
		resolver: taxonomy.NewResolver(im.store),
		log: logging.WithFields(ctx,
			"file", in.Name,
			"mode", string(im.opts.Mode),
			"dry_run", im.opts.DryRun,
		),
		nsCounts: map[string]int{},
		bySKU:    map[string]*pendingProduct{},
		seenSKU:  map[string]bool{},
		dupSKU:   map[string]bool{},
	}

	r.log.Info("import started", "size", in.Size)

	err := r.execute(ctx, in)
	r.finalize(ctx, err)

	return r.report, err
}

func (r *run) execute(ctx context.Context, in Input) error {
	r.notify(PhaseValidating, 0)
	if err := r.validate(ctx, in); err != nil {
		return err
	}

	r.notify(PhasePreparing, 0)
	if err := r.prepare(ctx); err != nil {
		return err
	}

	if r.im.opts.DryRun {
		r.detail("dry run: no changes will be made", "products", len(r.pending))
		return nil
	}

	r.notify(PhaseApplying, 0)
	return r.apply(ctx)
}

// validate opens the record stream and checks the header.
func (r *run) validate(ctx context.Context, in Input) error {
	src, err := newRecordSource(in, r.im.opts)
	if err != nil {
		return err
	}
	r.source = src
	for _, w := range src.warnings {
		r.warn(w)
	}

	for i := 0; i < r.im.opts.SkipLines; i++ {
		if _, _, err := src.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: nothing left after skipping %d lines", ErrEmptyFile, r.im.opts.SkipLines)
			}
			return fmt.Errorf("skip line %d: %w", i+1, err)
		}
	}

	header, _, err := src.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	for i := range header {
		header[i] = cleanCell(header[i])
	}
	if len(header) == 0 || header[0] == "" {
		return fmt.Errorf("%w: first column is empty", ErrInvalidHeader)
	}
	if !strings.EqualFold(header[0], skuColumn) {
		return fmt.Errorf("%w: first column must be %s, found %q", ErrInvalidHeader, skuColumn, header[0])
	}
	if len(header) < 2 {
		return fmt.Errorf("%w: at least 2 columns required (%s + namespaces)", ErrInvalidHeader, skuColumn)
	}

	namespaces := header[1:]
	for _, ns := range namespaces {
		ok, err := r.im.catalog.NamespaceExists(ctx, ns)
		if err != nil {
			return fmt.Errorf("check namespace %q: %w", ns, err)
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
		}
	}

	r.header = header
	r.namespaces = namespaces
	r.report.Namespaces = append([]string(nil), namespaces...)

	r.detail("header validated", "columns", len(header), "namespaces", strings.Join(namespaces, ", "))
	return nil
}

// prepare reads every data row into the pending change set.
func (r *run) prepare(ctx context.Context) error {
	stats := &r.report.Stats

	for {
		if stats.TotalRows%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		row, line, err := r.source.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}

		stats.TotalRows++
		if err := r.prepareRow(ctx, row, line); err != nil {
			return err
		}
		r.notify(PhasePreparing, r.source.counter.Percent())
	}

	if len(r.dupSKU) > 0 {
		skus := make([]string, 0, len(r.dupSKU))
		for sku := range r.dupSKU {
			skus = append(skus, sku)
		}
		slices.Sort(skus)
		r.report.DuplicateSKUs = skus
		r.log.Warn("duplicate SKUs found", "count", len(skus), "skus", strings.Join(skus, ", "))
	}

	for _, ns := range r.namespaces {
		if n := r.nsCounts[ns]; n > 0 {
			stats.TermsPerNamespace = append(stats.TermsPerNamespace, NamespaceCount{Namespace: ns, Count: n})
		}
	}

	r.detail("data preparation completed", "rows", stats.TotalRows, "products", len(r.pending))
	return nil
}

func (r *run) prepareRow(ctx context.Context, row []string, line int) error {
	if isEmptyRow(row) {
		return nil
	}

	if len(row) != len(r.header) {
		r.warn(fmt.Sprintf("line %d: incorrect number of columns (%d instead of %d)", line, len(row), len(r.header)))
	}

	sku := cleanCell(row[0])
	if sku == "" {
		r.warn(fmt.Sprintf("line %d: empty SKU", line))
		return nil
	}
	if r.seenSKU[sku] {
		r.dupSKU[sku] = true
	}
	r.seenSKU[sku] = true

	productID, found, err := r.im.catalog.ProductIDBySKU(ctx, sku)
	if err != nil {
		return fmt.Errorf("line %d: find product %q: %w", line, sku, err)
	}
	if !found {
		r.report.ProductsNotFound = append(r.report.ProductsNotFound, sku)
		r.report.Stats.ProductsNotFound++
		return nil
	}
	r.report.Stats.ProductsFound++

	var existing map[string][]taxonomy.NodeID
	for i := 1; i < len(r.header) && i < len(row); i++ {
		ns := r.header[i]
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}

		res, err := r.resolver.Resolve(ctx, value, ns)
		if err != nil {
			return fmt.Errorf("line %d: resolve %s %q: %w", line, ns, value, err)
		}
		if !res.OK() {
			continue
		}

		if r.im.opts.Mode == ModeUpdate {
			if existing == nil {
				existing = map[string][]taxonomy.NodeID{}
			}
			ids, ok := existing[ns]
			if !ok {
				ids, err = r.im.catalog.ProductTermIDs(ctx, productID, ns)
				if err != nil {
					return fmt.Errorf("line %d: terms of %q: %w", line, sku, err)
				}
				existing[ns] = ids
			}
			if slices.Contains(ids, res.Node.ID) {
				r.report.AlreadyExisting = append(r.report.AlreadyExisting, fmt.Sprintf("%s: %s %q", sku, ns, value))
				r.report.Stats.TermsSkipped++
				continue
			}
		}

		p := r.bySKU[sku]
		if p == nil {
			p = &pendingProduct{productID: productID, sku: sku, terms: map[string][]taxonomy.NodeID{}}
			r.bySKU[sku] = p
			r.pending = append(r.pending, p)
		}
		if p.add(ns, res.Node.ID) {
			r.nsCounts[ns]++
		}
	}
	return nil
}

// apply writes the pending change set in batches of BatchSize products.
// The first failing batch aborts the run; earlier batches stay committed.
func (r *run) apply(ctx context.Context) error {
	if len(r.pending) == 0 {
		r.warn("no data to process")
		return nil
	}

	replace := r.im.opts.Mode == ModeReplace
	size := r.im.opts.BatchSize
	applied := 0

	for start := 0; start < len(r.pending); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, len(r.pending))
		var batch []taxonomy.Assignment
		for _, p := range r.pending[start:end] {
			for _, ns := range p.namespaces {
				batch = append(batch, taxonomy.Assignment{
					ProductID: p.productID,
					SKU:       p.sku,
					Namespace: ns,
					TermIDs:   p.terms[ns],
				})
			}
		}

		batchStart := time.Now()
		if err := r.im.catalog.ApplyBatch(ctx, batch, replace); err != nil {
			return fmt.Errorf("apply batch %d-%d: %w", start+1, end, err)
		}

		for _, a := range batch {
			r.report.Stats.TermsUpdated += len(a.TermIDs)
		}
		applied = end
		r.report.Stats.ProductsUpdated = applied

		r.log.Debug("batch applied",
			"products", end-start,
			"assignments", len(batch),
			"duration_ms", time.Since(batchStart).Milliseconds(),
		)
		r.notifyApplied(applied)
	}

	r.detail("database update completed", "products", applied, "terms", r.report.Stats.TermsUpdated)
	return nil
}

// finalize completes the report, refreshes derived catalog data and writes
// the report file.
func (r *run) finalize(ctx context.Context, runErr error) {
	r.notify(PhaseFinalizing, 100)
	rep := r.report

	if !rep.DryRun && rep.Stats.TermsUpdated > 0 {
		for _, nc := range rep.Stats.TermsPerNamespace {
			if err := r.im.catalog.RefreshTermCounts(ctx, nc.Namespace); err != nil {
				r.warn(fmt.Sprintf("refresh term counts for %s: %v", nc.Namespace, err))
			}
		}
	}
	if f, ok := r.im.store.(flusher); ok {
		f.Flush()
	}

	for kind, msgs := range r.resolver.Ledger().All() {
		rep.Failures[kind.String()] = msgs
	}

	rep.FinishedAt = r.im.now()
	elapsed := rep.Duration()
	rep.Stats.DurationMS = elapsed.Milliseconds()
	if rep.Stats.TotalRows > 0 && elapsed > 0 {
		rep.Stats.RowsPerSecond = float64(rep.Stats.TotalRows) / elapsed.Seconds()
	}

	if runErr != nil {
		rep.Status = StatusFailed
		rep.Error = runErr.Error()
	} else {
		rep.Status = StatusCompleted
	}

	// A run that never got past the header has nothing worth a report file
	if r.im.opts.LogDir != "" && (runErr == nil || r.header != nil) {
		if _, err := rep.WriteFile(r.im.opts.LogDir); err != nil {
			r.log.Error("failed to write report", "error", err)
		}
	}

	attrs := []any{
		"status", rep.Status,
		"rows", rep.Stats.TotalRows,
		"products_found", rep.Stats.ProductsFound,
		"products_not_found", rep.Stats.ProductsNotFound,
		"terms_updated", rep.Stats.TermsUpdated,
		"terms_skipped", rep.Stats.TermsSkipped,
		"failures", rep.FailureCount(),
		"duration_ms", rep.Stats.DurationMS,
	}
	if rep.LogPath != "" {
		attrs = append(attrs, "report", rep.LogPath)
	}

	if runErr != nil {
		r.notify(PhaseFailed, 0)
		r.log.Error("import failed", append(attrs, "error", runErr)...)
		return
	}
	r.notify(PhaseComplete, 100)
	r.log.Info("import completed", attrs...)
}

func (r *run) warn(msg string) {
	r.report.Warnings = append(r.report.Warnings, msg)
	r.log.Warn(msg)
}

// detail logs phase milestones at info level when verbose, debug otherwise.
func (r *run) detail(msg string, args ...any) {
	if r.im.opts.Verbose {
		r.log.Info(msg, args...)
		return
	}
	r.log.Debug(msg, args...)
}

func (r *run) notify(phase Phase, percent int) {
	if r.im.progress == nil {
		return
	}
	r.im.progress(Progress{
		RunID:    r.report.RunID,
		Phase:    phase,
		Rows:     r.report.Stats.TotalRows,
		Products: len(r.pending),
		Percent:  percent,
	})
}

func (r *run) notifyApplied(applied int) {
	if r.im.progress == nil {
		return
	}
	r.im.progress(Progress{
		RunID:    r.report.RunID,
		Phase:    PhaseApplying,
		Rows:     r.report.Stats.TotalRows,
		Products: len(r.pending),
		Applied:  applied,
		Percent:  applied * 100 / len(r.pending),
	})
}
