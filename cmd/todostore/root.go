package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/andreyvit/todostore"
)

// RootOptions holds global flags for all commands and the engine they share.
type RootOptions struct {
	ConfigPath string
	Output     string // "text" | "json"

	// flags is only consulted for flags set on the command line
	flags Config

	engine *todostore.Engine
}

var ValidOutputs = []string{"text", "json"}

func NewRootCommand(opts *RootOptions) *cobra.Command {
	def := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "todostore",
		Short: "Manage a todo list stored in an ordered key-value store",
		Long: `Manage a todo list stored in an ordered key-value store.

Records live under todo:<id>, and every record has exactly one index entry
under todo-completed-true:<id> or todo-completed-false:<id>. Use "check" to
verify that and "reindex" to repair it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isOneOf(opts.Output, ValidOutputs) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			return opts.open(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	f.StringVar(&opts.flags.Backend, "backend", def.Backend, "storage backend (bolt|pebble|mem)")
	f.StringVar(&opts.flags.Path, "path", def.Path, "bolt file or pebble directory")
	f.StringVar(&opts.flags.Format, "format", def.Format, "record encoding (envelope|json)")
	f.IntVar(&opts.flags.MaxRetries, "max-retries", def.MaxRetries, "optimistic retries of a conflicting update (0 = default)")
	f.BoolVarP(&opts.flags.Verbose, "verbose", "v", false, "log every storage operation")
	f.StringVarP(&opts.Output, "output", "o", "text", "output format (text|json)")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCompletedCommand(opts, "done", true))
	cmd.AddCommand(NewSetCompletedCommand(opts, "undone", false))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewReindexCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

// config merges the config file and the flags that were set explicitly.
func (opts *RootOptions) config(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = LoadConfig(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
	}
	fl := cmd.Flags()
	if fl.Changed("backend") {
		cfg.Backend = opts.flags.Backend
	}
	if fl.Changed("path") {
		cfg.Path = opts.flags.Path
	}
	if fl.Changed("format") {
		cfg.Format = opts.flags.Format
	}
	if fl.Changed("max-retries") {
		cfg.MaxRetries = opts.flags.MaxRetries
	}
	if fl.Changed("verbose") {
		cfg.Verbose = opts.flags.Verbose
	}
	return cfg, cfg.Validate()
}

func (opts *RootOptions) open(cmd *cobra.Command) error {
	cfg, err := opts.config(cmd)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts.engine, err = OpenEngine(cfg, logger)
	return err
}

func (opts *RootOptions) close() error {
	if opts.engine == nil {
		return nil
	}
	err := opts.engine.Close()
	opts.engine = nil
	return err
}

func (opts *RootOptions) printRecords(w io.Writer, recs []*todostore.Record) error {
	if opts.Output == "json" {
		return printJSON(w, recs)
	}
	for _, rec := range recs {
		fmt.Fprintln(w, rec)
	}
	return nil
}

func (opts *RootOptions) printRecord(w io.Writer, rec *todostore.Record) error {
	if opts.Output == "json" {
		return printJSON(w, rec)
	}
	_, err := fmt.Fprintln(w, rec)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
