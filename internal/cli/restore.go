package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestoreCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Revert the scope to the state before a checkpoint began",
		Long: `Restore replays undo entries for the target checkpoint and everything
after it in the same scope, most recent first, leaving the scope exactly
as it was immediately before the target began. The target's own changes
are reverted too.

Checkpoints already rolled back are skipped. An active session is rolled
back before the restore runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			checkpoints, entries, err := app.manager.RestoreToCheckpoint(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "restore", err)
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"target":      args[0],
					"checkpoints": checkpoints,
					"entries":     entries,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored to before %s: %d checkpoint(s), %d change(s) reverted\n",
				args[0], checkpoints, entries)
			return nil
		},
	}
}
