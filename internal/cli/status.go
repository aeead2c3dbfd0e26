package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanvale/savepoint/internal/record"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var (
		scopeID       int64
		applicationID int64
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active session and checkpoint counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scopeID == 0 {
				scopeID = opts.defaultScope
			}

			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			active, activeCheckpoints, summary, err := app.manager.Status(cmd.Context(), scopeID, applicationID)
			if err != nil {
				return WrapExitError(ExitFailure, "status", err)
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"active_session":     active,
					"active_checkpoints": activeCheckpoints,
					"total":              summary.Total,
					"by_source":          summary.BySource,
				})
			}

			out := cmd.OutOrStdout()
			if active != nil {
				fmt.Fprintf(out, "Active session: %s (scope %d): %s\n",
					active.ID, active.ScopeID, active.Description)
			} else {
				fmt.Fprintln(out, "No active session.")
			}

			fmt.Fprintf(out, "Checkpoints: %d total, %d active\n", summary.Total, len(activeCheckpoints))
			for _, source := range []record.Source{record.SourceLLM, record.SourceMCP, record.SourceAPI} {
				if n := summary.BySource[source]; n > 0 {
					fmt.Fprintf(out, "  %s: %d\n", source, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&scopeID, "scope", 0, "restrict to one scope (0 means all)")
	cmd.Flags().Int64Var(&applicationID, "app", 0, "restrict to one application (0 means all)")

	return cmd
}
