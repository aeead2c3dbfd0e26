package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var (
		all           bool
		scopeID       int64
		applicationID int64
	)

	cmd := &cobra.Command{
		Use:   "delete [checkpoint-id]",
		Short: "Permanently remove checkpoint history",
		Long: `Delete removes a checkpoint and its undo-log entries. This is history
deletion only: entity data is not reverted, and the deleted checkpoint can
no longer be restored to.

With --all every checkpoint in the scope is removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return NewExitError(ExitCommandError, "pass exactly one of a checkpoint id or --all")
			}

			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()

			if all {
				if scopeID == 0 {
					scopeID = opts.defaultScope
				}
				count, err := app.manager.DeleteAllCheckpoints(cmd.Context(), scopeID, applicationID)
				if err != nil {
					return WrapExitError(ExitFailure, "delete checkpoints", err)
				}
				if opts.format == "json" {
					return writeJSON(out, map[string]any{"deleted": count})
				}
				fmt.Fprintf(out, "Deleted %d checkpoint(s)\n", count)
				return nil
			}

			if err := app.manager.DeleteCheckpoint(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "delete checkpoint", err)
			}
			if opts.format == "json" {
				return writeJSON(out, map[string]any{"deleted": 1, "checkpoint_id": args[0]})
			}
			fmt.Fprintf(out, "Deleted checkpoint %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every checkpoint in the scope")
	cmd.Flags().Int64Var(&scopeID, "scope", 0, "restrict --all to one scope (0 means all)")
	cmd.Flags().Int64Var(&applicationID, "app", 0, "restrict --all to one application (0 means all)")

	return cmd
}
