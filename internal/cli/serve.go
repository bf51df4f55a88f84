package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/web"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolve and import API over HTTP",
		Long: `Serve exposes term resolution and CSV imports over HTTP.

Endpoints:
  GET  /healthz
  GET  /api/namespaces/{namespace}/resolve?value=...
  POST /api/imports          multipart: file, mode, dry_run, delimiter, skip_lines, encoding, batch_size
  GET  /api/imports/status
  GET  /api/imports/{id}     JSON report
  GET  /imports/{id}         HTML report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			log.Info("configuration loaded",
				"port", cfg.Server.Port,
				"db_max_conns", cfg.Database.MaxConns,
				"import_max_concurrent", cfg.Import.MaxConcurrent,
				"cache_enabled", cfg.Cache.Enabled,
			)

			pool, err := catalog.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			cat := catalog.New(pool)

			server := web.NewServer(cfg, cat, web.WithRecorder(cat))

			// Graceful shutdown once the command context is cancelled
			done := make(chan struct{})
			go func() {
				defer close(done)
				<-ctx.Done()
				log.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error("shutdown error", "error", err)
				}
			}()

			if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-done
			log.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().String("host", "", "interface to bind to (default: 0.0.0.0)")
	cmd.Flags().Int("port", 0, "port to listen on (default: 8080)")
	a.bindFlag("host", "server_host")
	a.bindFlag("port", "server_port")

	return cmd
}
