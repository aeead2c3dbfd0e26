package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/record"
)

func newCommitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Commit the active checkpoint session",
		Long: `Commit marks the active checkpoint committed, making its changes
permanent. Committing with no active session is a warning, not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			cp, ok, err := app.manager.ActiveSession(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "commit", err)
			}

			if err := app.manager.Commit(cmd.Context()); err != nil {
				if errors.Is(err, engine.ErrNoActiveSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "No active session to commit.")
					return nil
				}
				return WrapExitError(ExitFailure, "commit", err)
			}

			if opts.format == "json" {
				cp.Status = record.StatusCommitted
				return writeJSON(cmd.OutOrStdout(), cp)
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s committed: %s\n", cp.ID, cp.Description)
			}
			return nil
		},
	}
}
