package cli

import (
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/config"
	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/resource"
	"github.com/roach88/dstore/internal/schema"
	"github.com/roach88/dstore/internal/store"
)

// DocumentStore is the store type used by every command.
type DocumentStore = store.Store[record.Document]

// StoreOptions holds flags for commands that work on one store.
type StoreOptions struct {
	*RootOptions
	Store string
	Where []string
}

func (o *StoreOptions) addStoreFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Store, "store", "s", config.DefaultStore, "store name")
}

func (o *StoreOptions) addWhereFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, "field=value filter (repeatable)")
}

// filter parses --where flags into a document predicate.
func (o *StoreOptions) filter() (func(record.Document) bool, error) {
	q := url.Values{}
	for _, w := range o.Where {
		field, value, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return nil, usagef("invalid filter %q: want field=value", w)
		}
		q.Add(field, value)
	}
	return resource.Filter(q), nil
}

// open opens the selected store for a one-shot command. Its emergency
// flush is registered with the shutdown manager.
func (o *StoreOptions) open(cmd *cobra.Command) (*DocumentStore, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	sc, ok := cfg.Store(o.Store)
	if !ok {
		sc = config.StoreConfig{Name: o.Store}
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	st, err := openStore(cfg, sc, logger, o.Shutdown)
	if err != nil {
		return nil, usage("failed to open store", err)
	}
	return st, nil
}

// openStore opens one configured store, attaching its CUE schema when one
// is configured.
func openStore(cfg config.Config, sc config.StoreConfig, logger *slog.Logger, hooks store.HookRegistry) (*DocumentStore, error) {
	opts := []store.Option{
		store.WithDir(cfg.Dir),
		store.WithQuietWindow(cfg.QuietWindow),
		store.WithLogger(logger),
	}
	if hooks != nil {
		opts = append(opts, store.WithShutdownHooks(hooks))
	}
	if sc.Schema != "" {
		sch, err := schema.Load(sc.Schema, sc.Definition)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithValidator(sch.Validate))
	}
	return store.Open[record.Document](sc.Name, opts...)
}

// readDocument parses a JSON object argument; "-" reads it from r.
func readDocument(arg string, r io.Reader) (record.Document, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(r); err != nil {
			return nil, usage("failed to read stdin", err)
		}
	}
	doc, err := record.Decode[record.Document](data)
	if err != nil || doc == nil {
		return nil, usagef("argument is not a JSON object: %s", arg)
	}
	return doc, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, usagef("invalid id %q", arg)
	}
	return id, nil
}
