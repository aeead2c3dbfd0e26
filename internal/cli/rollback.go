package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/record"
)

func newRollbackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Revert and close the active checkpoint session",
		Long: `Rollback replays the active checkpoint's undo log most-recent-first,
reverting every captured mutation, then marks the checkpoint rolled back.
Rolling back with no active session is a warning, not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			cp, ok, err := app.manager.ActiveSession(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "rollback", err)
			}

			if err := app.manager.Rollback(cmd.Context()); err != nil {
				if errors.Is(err, engine.ErrNoActiveSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "No active session to roll back.")
					return nil
				}
				return WrapExitError(ExitFailure, "rollback", err)
			}

			if opts.format == "json" {
				cp.Status = record.StatusRolledBack
				return writeJSON(cmd.OutOrStdout(), cp)
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s rolled back: %s\n", cp.ID, cp.Description)
			}
			return nil
		},
	}
}
