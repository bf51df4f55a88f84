// Package web serves term resolution and CSV imports over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/taxonomy-import/internal/config"
	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
	mw "github.com/JonMunkholm/taxonomy-import/internal/web/middleware"
)

// Catalog is the catalog the server reads from and imports into.
type Catalog interface {
	importer.Catalog
	Ping(ctx context.Context) error
}

// RunRecorder stores the summary of finished imports.
type RunRecorder interface {
	RecordReport(ctx context.Context, rep *importer.Report) error
}

// Server is the HTTP server for serve mode.
type Server struct {
	cfg      *config.Config
	catalog  Catalog
	store    taxonomy.Store
	recorder RunRecorder
	limiter  *importer.Limiter
	reports  *reportStore
	router   *chi.Mux
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStore resolves terms through store instead of the catalog.
func WithStore(store taxonomy.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithRecorder records every finished import through rec.
func WithRecorder(rec RunRecorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, catalog Catalog, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		catalog: catalog,
		store:   catalog,
		limiter: importer.NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		reports: newReportStore(cfg.Cache.ReportTTL),
		router:  chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxyList()))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	limiter := newRateLimiter(s.cfg.Server.RequestsPerMinute)
	s.router.Use(limiter.middleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/imports/{runID}", s.handleImportPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Server.APIKeyList()))

		r.Get("/namespaces/{namespace}/resolve", s.handleResolve)

		r.Post("/imports", s.handleImport)
		r.Get("/imports/status", s.handleImportStatus)
		r.Get("/imports/{runID}", s.handleImportReport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: 0, // imports run inside the request, bounded by IMPORT_TIMEOUT
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	logging.FromContext(context.Background()).Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and waits for running imports.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
