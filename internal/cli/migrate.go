package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
)

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing catalog tables",
		Long:  `Migrate applies the catalog schema. It only creates what is missing and is safe to run repeatedly.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := catalog.New(pool).Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Catalog schema is up to date")
			return nil
		},
	}
}
