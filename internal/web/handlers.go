package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
	"github.com/JonMunkholm/taxonomy-import/internal/web/templates"
)

const (
	// multipartMemory is how much of an upload is held in memory before
	// spilling to a temp file.
	multipartMemory = 8 << 20
	// formOverhead leaves room for the multipart envelope and other fields
	// on top of the file size cap.
	formOverhead = 1 << 20

	healthTimeout = 2 * time.Second
)

// handleHealth reports whether the catalog database is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.catalog.Ping(ctx); err != nil {
		logging.FromContext(ctx).Error("health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.limiter.Status(),
	})
}

// NodeResponse is a resolved term.
type NodeResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	ParentID  *int64 `json:"parent_id"`
}

// FailureResponse explains why a value did not resolve.
type FailureResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ResolveResponse is the outcome of resolving one value.
type ResolveResponse struct {
	Namespace string           `json:"namespace"`
	Value     string           `json:"value"`
	Resolved  bool             `json:"resolved"`
	Node      *NodeResponse    `json:"node,omitempty"`
	Failure   *FailureResponse `json:"failure,omitempty"`
}

// handleResolve resolves ?value= in a namespace without changing anything.
// A value that does not resolve is still a 200; the failure is in the body.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	namespace := chi.URLParam(r, "namespace")
	value := r.URL.Query().Get("value")

	ok, err := s.catalog.NamespaceExists(ctx, namespace)
	if err != nil {
		writeError(w, r, err, statusFor(err))
		return
	}
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %q", importer.ErrUnknownNamespace, namespace), http.StatusNotFound)
		return
	}

	res, err := taxonomy.NewResolver(s.store).Resolve(ctx, value, namespace)
	if err != nil {
		writeError(w, r, err, statusFor(err))
		return
	}

	resp := ResolveResponse{
		Namespace: namespace,
		Value:     strings.TrimSpace(value),
		Resolved:  res.OK(),
	}
	if res.OK() {
		resp.Node = toNodeResponse(res.Node)
	} else {
		resp.Failure = &FailureResponse{Kind: res.Failure.Kind.String(), Detail: res.Failure.Detail}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func toNodeResponse(n taxonomy.Node) *NodeResponse {
	resp := &NodeResponse{ID: int64(n.ID), Name: n.Name, Namespace: n.Namespace}
	if id, ok := n.Parent.ID(); ok {
		pid := int64(id)
		resp.ParentID = &pid
	}
	return resp
}

// handleImport runs an import from a multipart upload and returns its report.
//
// Form fields: file (required), mode, dry_run, delimiter, skip_lines,
// encoding, batch_size. Missing fields fall back to the import configuration.
// The run holds an import slot for its whole duration.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, importer.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
		}
		writeError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	opts, err := importer.OptionsFromConfig(s.cfg.Import)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, opts.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: maximum %d bytes", importer.ErrFileTooLarge, opts.MaxFileSize)
		} else {
			err = fmt.Errorf("%w: %v", importer.ErrNoFile, err)
		}
		writeError(w, r, err, statusFor(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, importer.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := applyFormOptions(&opts, r); err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	store := s.store
	if s.cfg.Cache.Enabled {
		store = catalog.NewCachedStore(s.store, s.cfg.Cache.TTL)
	}
	im, err := importer.New(s.catalog, opts, importer.WithStore(store))
	if err != nil {
		writeError(w, r, err, statusFor(err))
		return
	}

	runCtx := ctx
	if s.cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Import.Timeout)
		defer cancel()
	}

	rep, runErr := im.Run(runCtx, importer.Input{Name: header.Filename, Size: header.Size, Reader: file})
	s.reports.put(rep)
	s.record(ctx, rep)

	if runErr != nil {
		writeRunError(w, r, runErr, statusFor(runErr), rep.RunID)
		return
	}

	w.Header().Set("Location", "/api/imports/"+rep.RunID)
	writeJSON(w, r, http.StatusCreated, rep)
}

// applyFormOptions overrides opts with the form fields that are present.
func applyFormOptions(opts *importer.Options, r *http.Request) error {
	if v := r.FormValue("mode"); v != "" {
		mode, err := importer.ParseMode(v)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}
	if v := r.FormValue("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: dry_run must be a boolean, got %q", importer.ErrInvalidOptions, v)
		}
		opts.DryRun = dry
	}
	if v := r.FormValue("delimiter"); v != "" {
		if v == `\t` || strings.EqualFold(v, "tab") {
			v = "\t"
		}
		delim, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			return fmt.Errorf("%w: delimiter must be a single character, got %q", importer.ErrInvalidOptions, v)
		}
		opts.Delimiter = delim
	}
	if v := r.FormValue("skip_lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: skip_lines must be an integer, got %q", importer.ErrInvalidOptions, v)
		}
		opts.SkipLines = n
	}
	if v := r.FormValue("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: batch_size must be an integer, got %q", importer.ErrInvalidOptions, v)
		}
		opts.BatchSize = n
	}
	if v := r.FormValue("encoding"); v != "" {
		opts.Encoding = v
	}
	return opts.Validate()
}

// record stores the run summary. A failure here does not fail the request.
func (s *Server) record(ctx context.Context, rep *importer.Report) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordReport(context.WithoutCancel(ctx), rep); err != nil {
		logging.FromContext(logging.WithRunID(ctx, rep.RunID)).Error("failed to record import run", "error", err)
	}
}

// handleImportStatus returns the state of the import limiter.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.limiter.Status())
}

// handleImportReport returns a stored report as JSON.
func (s *Server) handleImportReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.reports.get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, r, errReportNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// handleImportPage renders a stored report as HTML.
func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.reports.get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, r, errReportNotFound, http.StatusNotFound)
		return
	}
	templ.Handler(templates.ReportPage(rep)).ServeHTTP(w, r)
}
