package cli

import (
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/config"
	"github.com/roach88/dstore/internal/lifecycle"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	Dir     string
	Window  time.Duration

	// Shutdown runs store emergency flushes on termination.
	Shutdown *lifecycle.Manager
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dstore CLI. Stores
// opened by commands register with shutdown; a nil manager gets a default
// one.
func NewRootCommand(shutdown *lifecycle.Manager) *cobra.Command {
	if shutdown == nil {
		shutdown = lifecycle.New()
	}
	opts := &RootOptions{Shutdown: shutdown}

	cmd := &cobra.Command{
		Use:   "dstore",
		Short: "dstore - file-mirrored document stores",
		Long: `dstore keeps collections of JSON documents in memory and mirrors each one
to <dir>/<name>.ds.json. Changes are written after a quiet window and
flushed at once when the process is told to stop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return usagef("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Window < 0 {
				return usagef("window must not be negative")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "directory holding store files (default: working directory)")
	cmd.PersistentFlags().DurationVar(&opts.Window, "window", 0, "debounce quiet window (default 1s)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewPatchCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			return config.Config{}, usage("failed to load config", err)
		}
		cfg = loaded
	}
	cfg = cfg.Merge(config.Config{Dir: o.Dir, QuietWindow: o.Window})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, usage("invalid config", err)
	}
	return cfg, nil
}

// logger returns a text logger on w, at debug level when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{out: cmd.OutOrStdout(), json: o.Format == "json"}
}
