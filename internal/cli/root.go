package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/docket/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	Database    string
	Schemas     string
	Env         string
	MetricsFile string

	// Config is resolved from the config file, DOCKET_* variables and the
	// flags above before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docket CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docket",
		Short: "docket - typed documents over a key-value store",
		Long: `docket stores schema-validated records in a SQLite-backed key-value store.

Models are declared in CUE files under the schemas directory. Records are
created, queried with MongoDB-style predicates, updated and destroyed from
the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return badInput(fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			cfg, err := resolveConfig(opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default docket.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Schemas, "schemas", "", "directory of CUE model schemas")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", "", "environment (development enables destroy-all)")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewFindOneCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDestroyCommand(opts))
	cmd.AddCommand(NewDestroyAllCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolveConfig loads the config and applies flag overrides. Flags win
// over the file and the environment.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Schemas != "" {
		cfg.Schemas = opts.Schemas
	}
	if opts.Env != "" {
		cfg.Env = opts.Env
	}
	if opts.MetricsFile != "" {
		cfg.Metrics.File = opts.MetricsFile
	}
	return cfg, nil
}

// resolved returns the resolved config, loading it when the command runs
// outside the root command.
func (o *RootOptions) resolved() (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg
	return cfg, nil
}

// newLogger builds the slog handler the config asks for. --verbose forces
// debug level.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter builds the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
