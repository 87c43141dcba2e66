package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/store"
)

// Count reports how many documents a command changed.
type Count struct {
	Verb string `json:"-"`
	N    int    `json:"count"`
}

func (c Count) String() string {
	return fmt.Sprintf("%d %s", c.N, c.Verb)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print documents in store order",
		Long: `Print every document of a store, or those matching all --where filters.

Examples:
  dstore list
  dstore list --store users --where role=admin
  dstore list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, err := opts.filter()
			if err != nil {
				return err
			}
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			docs := st.ReadAll()
			if len(opts.Where) > 0 {
				docs = st.ReadWhere(pred)
			}
			return opts.printer(cmd).documents(docs)
		},
	}
	opts.addStoreFlag(cmd)
	opts.addWhereFlag(cmd)
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "get <id>",
		Short:         "Print one document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			p := opts.printer(cmd)
			doc, ok := st.Get(id)
			if !ok {
				return p.fail(Failure(string(store.CodeNotFound), fmt.Sprintf("key %d not found", id), nil))
			}
			return p.documents([]record.Document{doc})
		},
	}
	opts.addStoreFlag(cmd)
	return cmd
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <json|->",
		Short: "Create a document",
		Long: `Create a document and write the store file.

The document must be a JSON object with an integer "id" that is not in use.

Examples:
  dstore put '{"id":1,"name":"a"}'
  echo '{"id":2}' | dstore put -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			p := opts.printer(cmd)
			if err := st.Create(doc); err != nil {
				return p.fail(storeFailure("create", err))
			}
			if err := st.Flush(cmd.Context()); err != nil {
				return p.fail(storeFailure("flush", err))
			}
			return p.documents([]record.Document{doc})
		},
	}
	opts.addStoreFlag(cmd)
	return cmd
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch [<id>] <json|->",
		Short: "Merge fields into documents",
		Long: `Shallow-merge a JSON object into one document, or into every document
matching --where. The id field cannot be changed.

Examples:
  dstore patch 1 '{"coop":true}'
  dstore patch --where name=a '{"coop":false}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bulk := len(opts.Where) > 0
			if bulk == (len(args) == 2) {
				return usagef("give either an id or --where filters")
			}
			doc, err := readDocument(args[len(args)-1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			patch := record.Patch(doc)

			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			p := opts.printer(cmd)

			var result any
			if bulk {
				pred, err := opts.filter()
				if err != nil {
					return err
				}
				n, err := st.UpdateWhere(pred, patch)
				if err != nil {
					return p.fail(storeFailure("update", err))
				}
				result = Count{Verb: "updated", N: n}
			} else {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := st.Update(id, patch); err != nil {
					return p.fail(storeFailure("update", err))
				}
				updated, _ := st.Get(id)
				result = updated
			}

			if err := st.Flush(cmd.Context()); err != nil {
				return p.fail(storeFailure("flush", err))
			}
			if doc, ok := result.(record.Document); ok {
				return p.documents([]record.Document{doc})
			}
			return p.report(result, nil)
		},
	}
	opts.addStoreFlag(cmd)
	opts.addWhereFlag(cmd)
	return cmd
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rm [<id>]",
		Short: "Remove documents",
		Long: `Remove one document by id, or every document matching --where.
Removing an id that is not present is not an error.

Examples:
  dstore rm 1
  dstore rm --where coop=false`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bulk := len(opts.Where) > 0
			if bulk == (len(args) == 1) {
				return usagef("give either an id or --where filters")
			}

			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			p := opts.printer(cmd)

			removed := 0
			if bulk {
				pred, err := opts.filter()
				if err != nil {
					return err
				}
				if removed, err = st.DeleteWhere(pred); err != nil {
					return p.fail(storeFailure("delete", err))
				}
			} else {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if _, ok := st.Get(id); ok {
					removed = 1
				}
				if err := st.Delete(id); err != nil {
					return p.fail(storeFailure("delete", err))
				}
			}

			if err := st.Flush(cmd.Context()); err != nil {
				return p.fail(storeFailure("flush", err))
			}
			return p.report(Count{Verb: "removed", N: removed}, nil)
		},
	}
	opts.addStoreFlag(cmd)
	opts.addWhereFlag(cmd)
	return cmd
}
