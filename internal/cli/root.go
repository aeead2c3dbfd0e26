package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowanvale/savepoint/internal/config"
	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/history"
	"github.com/rowanvale/savepoint/internal/store"
)

// rootOptions carries the global flags shared by every subcommand.
type rootOptions struct {
	dbPath     string
	configPath string
	verbose    bool
	format     string

	defaultScope int64 // from config file only, no flag
}

// NewRootCommand creates the root savepoint command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "savepoint",
		Short: "Checkpoint and undo-log engine for builder mutations",
		Long: `savepoint groups entity mutations into named checkpoints backed by an
undo log, so any checkpoint can be committed, rolled back, or restored to
later with exact reversibility.

Sessions span invocations: begin opens a checkpoint, mutations recorded
against it accumulate undo entries, and commit or rollback closes it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", "savepoint.db", "path to the SQLite database")
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&opts.format, "format", "text", "output format: text or json")

	rootCmd.AddCommand(
		newBeginCommand(opts),
		newCommitCommand(opts),
		newRollbackCommand(opts),
		newRestoreCommand(opts),
		newStatusCommand(opts),
		newHistoryCommand(opts),
		newDeleteCommand(opts),
	)

	return rootCmd
}

// resolve merges the config file (if any) under the flags and finishes
// global setup. Flags set explicitly on the command line always win.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
		if cfg.Database != "" && !cmd.Flags().Changed("db") {
			o.dbPath = cfg.Database
		}
		if cfg.Format != "" && !cmd.Flags().Changed("format") {
			o.format = cfg.Format
		}
		if cfg.Verbose && !cmd.Flags().Changed("verbose") {
			o.verbose = true
		}
		o.defaultScope = cfg.DefaultScope
	}

	if o.format != "text" && o.format != "json" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be text or json", o.format))
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return nil
}

// appContext bundles the open store and the engine surfaces a command needs.
type appContext struct {
	store     *store.Store
	manager   *engine.Manager
	projector *history.Projector
}

// openApp opens the database and wires the session manager, resuming any
// checkpoint a previous invocation left active. Callers must Close.
func openApp(cmd *cobra.Command, opts *rootOptions) (*appContext, error) {
	st, err := store.Open(opts.dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	mgr, err := engine.NewManager(st, st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "initialize engine", err)
	}

	if _, err := mgr.ResumeActive(cmd.Context()); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "resume session", err)
	}

	return &appContext{
		store:     st,
		manager:   mgr,
		projector: history.NewProjector(st),
	}, nil
}

func (a *appContext) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("close database", "error", err)
	}
}
