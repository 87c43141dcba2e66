package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/api"
	"github.com/roach88/dstore/internal/resource"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stores over HTTP",
		Long: `Open every configured store and serve it as REST routes.

Without a config file one store, stream-items, is served at /stream-item.
On interrupt or terminate every store writes its pending changes before the
process exits.

Example:
  dstore serve --listen :3000 --dir ./data
  dstore serve --config dstore.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Listen, "listen", "l", "", "listen address (default :3000)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	a := api.New(api.WithLogger(logger))

	var stores []*DocumentStore
	defer func() {
		for _, st := range stores {
			if err := st.Close(); err != nil {
				logger.Error("error closing store", "store", st.Name(), "error", err)
			}
		}
	}()

	for _, sc := range cfg.Stores {
		st, err := openStore(cfg, sc, logger, opts.Shutdown)
		if err != nil {
			return usage(fmt.Sprintf("failed to open store %s", sc.Name), err)
		}
		stores = append(stores, st)
		resource.Mount(a, sc.Route, st)
	}

	a.LogEndpoints()
	fmt.Fprintln(cmd.OutOrStdout(), "API ready")

	if err := a.Serve(ctx, cfg.Listen); err != nil {
		return Failure("E_SERVE", "server error", err)
	}
	return nil
}
