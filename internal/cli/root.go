// Package cli implements the taxonomy-import command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/taxonomy-import/internal/config"
	"github.com/JonMunkholm/taxonomy-import/internal/importer"
	"github.com/JonMunkholm/taxonomy-import/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// defaultConfigName is looked up in the working directory when --config is not given.
const defaultConfigName = "taxonomy-import"

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool

	// flagKeys maps flag names to config keys; only flags set on the
	// command line override the config file and environment.
	flagKeys map[string]string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{
		v: viper.New(),
		flagKeys: map[string]string{
			"log-level":  "log_level",
			"log-format": "log_format",
		},
	}

	root := &cobra.Command{
		Use:   "taxonomy-import",
		Short: "Assign catalog terms to products from CSV files",
		Long: `taxonomy-import reads a CSV file whose first column is a product SKU and
whose other columns are term namespaces, resolves every cell to a catalog term
and attaches the terms to the products.

A cell holds a term name ("Shoes") or a path from the root ("Clothing > Men > Shoes").
Bare names shared by several terms are rejected; use the full path instead.

Configuration hierarchy (highest to lowest priority):
  1. Command-line flags
  2. Environment variables (DATABASE_URL, IMPORT_MODE, ...) and .env
  3. Config file (--config or ./taxonomy-import.yaml)
  4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./taxonomy-import.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every import phase")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: text or json")

	root.AddCommand(
		a.newImportCmd(),
		a.newResolveCmd(),
		a.newRunCmd(),
		a.newServeCmd(),
		a.newMigrateCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line with ctx and prints any error to stderr.
func Execute(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		PrintError(os.Stderr, err)
	}
	return err
}

// PrintError writes err and, when it maps to a known problem, the user hint.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if msg := importer.MapError(err); msg.Code != "" && msg.Code != "ERR000" {
		fmt.Fprintf(w, "  %s. %s (%s)\n", msg.Message, msg.Action, msg.Code)
	}
}

// loadConfig layers flags, environment and the config file into a Config and
// sets up logging from it.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName(defaultConfigName)
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, key := range config.Keys() {
		if err := a.v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := a.flagKeys[f.Name]; ok {
			a.v.Set(key, f.Value.String())
		}
	})

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return nil, err
	}

	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if used := a.v.ConfigFileUsed(); used != "" {
		logging.FromContext(cmd.Context()).Debug("using config file", "path", used)
	}
	return cfg, nil
}

// bindFlag registers a command flag as an override for a config key.
func (a *app) bindFlag(flag, key string) {
	a.flagKeys[flag] = key
}
