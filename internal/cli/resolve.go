package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/taxonomy-import/internal/catalog"
	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/taxonomy"
)

func (a *app) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <namespace> <value>...",
		Short: "Resolve term values without importing anything",
		Long: `Resolve looks up each value the way an import would and prints the term it
maps to, or why it does not map to one.

Example:
  taxonomy-import resolve product_cat "Clothing > Men > Shoes" Accessories`,
		Args: cobra.MinimumNArgs(2),
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

			return resolveValues(cmd, catalog.New(pool), args[0], args[1:])
		},
	}
}

// namespaceChecker is the part of the catalog resolveValues needs beyond lookups.
type namespaceChecker interface {
	taxonomy.Store
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
}

func resolveValues(cmd *cobra.Command, store namespaceChecker, namespace string, values []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ok, err := store.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", importer.ErrUnknownNamespace, namespace)
	}

	resolver := taxonomy.NewResolver(store)
	checked := 0
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			fmt.Fprintf(out, "%q: skipped, empty value\n", value)
			continue
		}
		checked++

		res, err := resolver.Resolve(ctx, value, namespace)
		if err != nil {
			return err
		}
		if !res.OK() {
			fmt.Fprintf(out, "%q: not resolved (%s)\n", value, res.Failure.Kind)
			continue
		}
		fmt.Fprintf(out, "%q: id %s, %q, parent %s\n", value, res.Node.ID, res.Node.Name, res.Node.Parent)
	}

	ledger := resolver.Ledger()
	if !ledger.HasAny() {
		return nil
	}

	fmt.Fprintln(out)
	for _, kind := range taxonomy.FailureKinds {
		msgs := ledger.ByKind(kind)
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n", kind.Label())
		for _, m := range msgs {
			fmt.Fprintf(out, "- %s\n", m)
		}
	}
	return fmt.Errorf("%d of %d values did not resolve", ledger.Count(), checked)
}
