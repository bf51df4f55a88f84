package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
	"github.com/JonMunkholm/taxonomy-import/internal/config"
	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

// errRunFailed signals a completed command whose import did not succeed.
var errRunFailed = errors.New("import failed")

func (a *app) newImportCmd() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import product terms from a CSV file",
		Long: `Import resolves every cell of the file and attaches the terms to the products.

The first header cell must be "sku"; every other header cell names a namespace
that must already exist in the catalog. Unresolved values, unknown SKUs and
terms that are already attached are listed in the report; they do not stop
the run.

Example:
  taxonomy-import import products.csv
  taxonomy-import import products.csv --mode replace --batch-size 50
  taxonomy-import import export.csv --delimiter ';' --skip-lines 2 --encoding windows-1251 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			return a.runImport(cmd, cfg, args[0], noCache)
		},
	}

	f := cmd.Flags()
	f.String("mode", "", "update adds to existing terms, replace replaces them (default: update)")
	f.Bool("dry-run", false, "resolve and report without writing")
	f.String("delimiter", "", "CSV field delimiter (default: ,)")
	f.Int("skip-lines", 0, "lines to skip before the header")
	f.Int("batch-size", 0, "products per transaction, 1-1000 (default: 100)")
	f.String("encoding", "", "input encoding: utf-8 or windows-1251")
	f.String("log-dir", "", "directory for the text report")
	f.BoolVar(&noCache, "no-cache", false, "query the catalog for every lookup")

	a.bindFlag("mode", "import_mode")
	a.bindFlag("dry-run", "import_dry_run")
	a.bindFlag("delimiter", "import_delimiter")
	a.bindFlag("skip-lines", "import_skip_lines")
	a.bindFlag("batch-size", "import_batch_size")
	a.bindFlag("encoding", "import_encoding")
	a.bindFlag("log-dir", "import_log_dir")

	return cmd
}

func (a *app) runImport(cmd *cobra.Command, cfg *config.Config, path string, noCache bool) error {
	opts, err := importer.OptionsFromConfig(cfg.Import)
	if err != nil {
		return err
	}
	opts.Verbose = a.verbose

	in, file, err := importer.OpenFile(path, opts.MaxFileSize)
	if err != nil {
		return err
	}
	defer file.Close()

	ctx := cmd.Context()
	if cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Import.Timeout)
		defer cancel()
	}

	pool, err := catalog.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	cat := catalog.New(pool)

	var store taxonomy.Store = cat
	if cfg.Cache.Enabled && !noCache {
		store = catalog.NewCachedStore(cat, cfg.Cache.TTL)
	}

	options := []importer.Option{importer.WithStore(store)}
	if a.verbose {
		options = append(options, importer.WithProgress(progressPrinter(cmd)))
	}

	im, err := importer.New(cat, opts, options...)
	if err != nil {
		return err
	}

	rep, runErr := im.Run(ctx, in)

	if err := cat.RecordReport(context.WithoutCancel(ctx), rep); err != nil {
		logging.FromContext(ctx).Warn("failed to record import run", "run_id", rep.RunID, "error", err)
	}

	if err := rep.WriteText(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	if rep.LogPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", rep.LogPath)
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", errRunFailed, runErr)
	}
	return nil
}

// progressPrinter writes one line per phase change and per 10% of progress.
func progressPrinter(cmd *cobra.Command) importer.ProgressFunc {
	var (
		lastPhase   importer.Phase
		lastPercent = -1
	)
	return func(p importer.Progress) {
		step := p.Percent / 10
		if p.Phase == lastPhase && step == lastPercent {
			return
		}
		lastPhase, lastPercent = p.Phase, step
		fmt.Fprintf(cmd.ErrOrStderr(), "%-10s %3d%%  rows=%d products=%d applied=%d\n",
			p.Phase, p.Percent, p.Rows, p.Products, p.Applied)
	}
}
