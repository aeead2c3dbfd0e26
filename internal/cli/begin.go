package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanvale/savepoint/internal/engine"
	"github.com/rowanvale/savepoint/internal/record"
)

func newBeginCommand(opts *rootOptions) *cobra.Command {
	var (
		scopeID       int64
		applicationID int64
		description   string
		userCommand   string
		source        string
	)

	cmd := &cobra.Command{
		Use:   "begin",
		Short: "Open a new checkpoint session",
		Long: `Begin opens a checkpoint and binds it as the active session. Mutations
recorded until commit or rollback accumulate undo entries under it.

If a session is already active it is rolled back first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scopeID == 0 {
				scopeID = opts.defaultScope
			}
			if scopeID == 0 {
				return NewExitError(ExitCommandError, "a scope is required: pass --scope or set default_scope in the config file")
			}
			if description == "" {
				return NewExitError(ExitCommandError, "--description is required")
			}

			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			cp, err := app.manager.Begin(cmd.Context(), engine.BeginParams{
				ScopeID:       scopeID,
				ApplicationID: applicationID,
				Description:   description,
				UserCommand:   userCommand,
				Source:        record.Source(source),
			})
			if err != nil {
				return WrapExitError(ExitFailure, "begin checkpoint", err)
			}

			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), cp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint %s started (scope %d): %s\n",
				cp.ID, cp.ScopeID, cp.Description)
			return nil
		},
	}

	cmd.Flags().Int64Var(&scopeID, "scope", 0, "scope the checkpoint belongs to")
	cmd.Flags().Int64Var(&applicationID, "app", 0, "application the checkpoint targets (optional)")
	cmd.Flags().StringVar(&description, "description", "", "human-readable checkpoint description")
	cmd.Flags().StringVar(&userCommand, "command", "", "verbatim user command that triggered the session (optional)")
	cmd.Flags().StringVar(&source, "source", string(record.SourceAPI), "originating surface: LLM, MCP, or API")

	return cmd
}
