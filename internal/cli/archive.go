package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/archive"
	"github.com/roach88/dstore/internal/record"
)

// ArchiveOptions holds flags for export and import.
type ArchiveOptions struct {
	StoreOptions
	DB string
}

type snapshotResult struct {
	archive.Snapshot
	Verb string `json:"-"`
}

func (r snapshotResult) String() string {
	return fmt.Sprintf("%s snapshot %d of %s: %d records", r.Verb, r.ID, r.Store, r.Records)
}

func (o *ArchiveOptions) addDBFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DB, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save a store snapshot to a SQLite archive",
		Long: `Append the current documents of a store to a SQLite archive as a new
snapshot. The archive is created if it does not exist.

Example:
  dstore export --db ./archive.db --store stream-items`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := archive.Open(opts.DB)
			if err != nil {
				return usage("failed to open archive", err)
			}
			defer a.Close()

			p := opts.printer(cmd)
			snap, err := archive.Export(cmd.Context(), a, st.Name(), st.ReadAll(), time.Now())
			if err != nil {
				return p.fail(Failure("E_ARCHIVE", "export failed", err))
			}
			return p.report(snapshotResult{Snapshot: snap, Verb: "exported"}, nil)
		},
	}
	opts.addStoreFlag(cmd)
	opts.addDBFlag(cmd)
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a store with its newest archived snapshot",
		Long: `Replace every document of a store with the newest snapshot of that store
in a SQLite archive, then write the store file. If a document is rejected
the previous contents are kept.

Example:
  dstore import --db ./archive.db --store stream-items`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := archive.Open(opts.DB)
			if err != nil {
				return usage("failed to open archive", err)
			}
			defer a.Close()

			p := opts.printer(cmd)
			docs, snap, err := archive.Import[record.Document](cmd.Context(), a, st.Name())
			if errors.Is(err, archive.ErrNoSnapshot) {
				return p.fail(Failure("E_NO_SNAPSHOT", "import failed", err))
			}
			if err != nil {
				return p.fail(Failure("E_ARCHIVE", "import failed", err))
			}

			if err := replaceAll(st, docs); err != nil {
				return p.fail(storeFailure("import", err))
			}
			if err := st.Flush(cmd.Context()); err != nil {
				return p.fail(storeFailure("flush", err))
			}
			return p.report(snapshotResult{Snapshot: snap, Verb: "imported"}, nil)
		},
	}
	opts.addStoreFlag(cmd)
	opts.addDBFlag(cmd)
	return cmd
}

// replaceAll swaps the store contents for docs. On a rejected document the
// previous contents are put back.
func replaceAll(st *DocumentStore, docs []record.Document) error {
	previous := st.ReadAll()
	all := func(record.Document) bool { return true }

	load := func(docs []record.Document) error {
		if _, err := st.DeleteWhere(all); err != nil {
			return err
		}
		for _, doc := range docs {
			if err := st.Create(doc); err != nil {
				return err
			}
		}
		return nil
	}

	if err := load(docs); err != nil {
		if restoreErr := load(previous); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}
