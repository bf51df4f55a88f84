package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
)

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Show the stored summary of an import run",
		Long: `Run prints the summary recorded for an import run. The id is printed in
every report and returned by the HTTP API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := catalog.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			run, err := catalog.New(pool).GetRun(ctx, id)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func printRun(w io.Writer, r catalog.Run) {
	mode := r.Mode
	if r.DryRun {
		mode += " (dry run)"
	}

	fmt.Fprintf(w, "Run ID:             %s\n", r.ID)
	fmt.Fprintf(w, "File:               %s\n", r.FileName)
	fmt.Fprintf(w, "Mode:               %s\n", mode)
	fmt.Fprintf(w, "Status:             %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:              %s\n", r.Error)
	}
	fmt.Fprintf(w, "Started:            %s\n", r.StartedAt.Format(time.DateTime))
	fmt.Fprintf(w, "Duration:           %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Rows:               %d\n", r.TotalRows)
	fmt.Fprintf(w, "Products updated:   %d\n", r.ProductsUpdated)
	fmt.Fprintf(w, "Products not found: %d\n", r.ProductsNotFound)
	fmt.Fprintf(w, "Terms updated:      %d\n", r.TermsUpdated)
	fmt.Fprintf(w, "Terms skipped:      %d\n", r.TermsSkipped)
	fmt.Fprintf(w, "Resolution errors:  %d\n", r.Failures)
}
