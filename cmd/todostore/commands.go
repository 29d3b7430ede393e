package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/andreyvit/todostore"
)

var errInconsistent = errors.New("index is inconsistent, run reindex")

func notFound(id todostore.ID) error {
	return fmt.Errorf("%s: %w", id, todostore.ErrNotFound)
}

type AddOptions struct {
	*RootOptions
	ID        string
	Completed bool
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := todostore.NewRecord(args[0])
			if opts.ID != "" {
				rec.ID = todostore.ID(opts.ID)
			}
			rec.Completed = opts.Completed
			if err := opts.engine.Create(cmd.Context(), rec); err != nil {
				return err
			}
			if opts.Output == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "record id (default: a random UUID)")
	cmd.Flags().BoolVar(&opts.Completed, "completed", false, "create the record as completed")

	return cmd
}

type ListOptions struct {
	*RootOptions
	Completed string
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in id order",
		Long: `List records in id order.

With --completed, only completed records are listed; --completed=false lists
the pending ones. Both are answered from the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []*todostore.Record
			var err error
			if opts.Completed == "" {
				recs, err = opts.engine.FetchAll(cmd.Context())
			} else {
				completed, perr := strconv.ParseBool(opts.Completed)
				if perr != nil {
					return fmt.Errorf("invalid --completed value %q", opts.Completed)
				}
				recs, err = opts.engine.FetchByCompleted(cmd.Context(), completed)
			}
			if err != nil {
				return err
			}
			return opts.printRecords(cmd.OutOrStdout(), recs)
		},
	}

	cmd.Flags().StringVar(&opts.Completed, "completed", "", "only list records with this completed value")
	cmd.Flags().Lookup("completed").NoOptDefVal = "true"

	return cmd
}

func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := todostore.ID(args[0])
			rec, err := opts.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rec == nil {
				return notFound(id)
			}
			return opts.printRecord(cmd.OutOrStdout(), rec)
		},
	}
}

func NewSetCompletedCommand(opts *RootOptions, name string, completed bool) *cobra.Command {
	short := "Mark a record as completed"
	if !completed {
		short = "Mark a record as not completed"
	}
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.update(cmd, todostore.ID(args[0]), todostore.SetCompleted(completed))
		},
	}
}

func NewRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change the title of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.update(cmd, todostore.ID(args[0]), todostore.SetTitle(args[1]))
		},
	}
}

func (opts *RootOptions) update(cmd *cobra.Command, id todostore.ID, patch todostore.Patch) error {
	rec, err := opts.engine.Update(cmd.Context(), id, patch)
	if err != nil {
		return err
	}
	if rec == nil {
		return notFound(id)
	}
	return opts.printRecord(cmd.OutOrStdout(), rec)
}

func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := todostore.ID(args[0])
			ok, err := opts.engine.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return notFound(id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			return nil
		},
	}
}

func NewCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the index matches the records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.engine.Verify(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r)
			if !r.OK() {
				return errInconsistent
			}
			return nil
		},
	}
}

func NewReindexCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the index from the records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.engine.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

func NewDumpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every key range of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.engine.Dump(cmd.Context(), todostore.DumpAll)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
