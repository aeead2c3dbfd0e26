package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		scopeID       int64
		applicationID int64
		checkout      bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show checkpoints with their resolved change summaries",
		Long: `History lists checkpoints newest first, each with a de-duplicated
summary of the rules it touched. Rows touched several times in one
checkpoint are reported once, at their most recent operation.

With --checkout the per-checkpoint view collapses into one cross-checkpoint
summary grouped by owning object and category.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scopeID == 0 {
				scopeID = opts.defaultScope
			}

			app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()

			if checkout {
				groups, err := app.projector.CheckoutSummary(cmd.Context(), scopeID, applicationID)
				if err != nil {
					return WrapExitError(ExitFailure, "history", err)
				}
				if opts.format == "json" {
					return writeJSON(out, groups)
				}
				for _, group := range groups {
					name := group.ObjectName
					if group.ObjectID == 0 {
						name = "(no object)"
					}
					fmt.Fprintf(out, "%s\n", name)
					for _, cat := range group.Categories {
						fmt.Fprintf(out, "  [%s]\n", cat.Category)
						for _, rule := range cat.Rules {
							fmt.Fprintf(out, "    %s %s %q (#%d)\n",
								rule.Operation, rule.Type, rule.Name, rule.ID)
						}
					}
				}
				return nil
			}

			checkpoints, err := app.projector.HistoryWithChanges(cmd.Context(), scopeID, applicationID)
			if err != nil {
				return WrapExitError(ExitFailure, "history", err)
			}
			if opts.format == "json" {
				return writeJSON(out, checkpoints)
			}
			for _, cp := range checkpoints {
				gap := ""
				if cp.HasGaps {
					gap = " [incomplete undo log]"
				}
				fmt.Fprintf(out, "%s  %s  %s  %s%s\n",
					cp.CreatedAt.Format("2006-01-02 15:04:05"), cp.ID, cp.Status, cp.Description, gap)
				for _, rule := range cp.UpdatedRules {
					fmt.Fprintf(out, "    %s %s %q (#%d)\n",
						rule.Operation, rule.Type, rule.Name, rule.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&scopeID, "scope", 0, "restrict to one scope (0 means all)")
	cmd.Flags().Int64Var(&applicationID, "app", 0, "restrict to one application (0 means all)")
	cmd.Flags().BoolVar(&checkout, "checkout", false, "aggregate all checkpoints into one object-grouped summary")

	return cmd
}
