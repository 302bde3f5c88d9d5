// Package suggestcmder provides the suggest command for ranking navigation
// candidates around the current branch.
package suggestcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const suggestLongDesc string = `Suggest where to continue the conversation.

Ranks the current branch's children, siblings, and parent by quality score
so you can pick a promising branch to switch to.

Examples:
  loom suggest`

const suggestShortDesc string = "Rank branches to continue on"

func NewSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: suggestShortDesc,
		Long:  suggestLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			pointer, err := ws.Position(ctx)
			if err != nil {
				return fmt.Errorf("no current session: %w", err)
			}

			suggestions, err := ws.Manager.Suggest(ctx, pointer.SessionID, pointer.BranchID)
			if err != nil {
				return fmt.Errorf("ranking branches: %w", err)
			}

			if len(suggestions) == 0 {
				fmt.Println("\n  No neighboring branches to suggest.")
				return nil
			}

			fmt.Println()
			for _, s := range suggestions {
				fmt.Printf("  %s %s %s\n",
					cliui.NameStyle.Render(s.BranchName),
					cliui.DimStyle.Render(fmt.Sprintf("(%s)", s.Relation)),
					cliui.KeyStyle.Render(fmt.Sprintf("%.2f", s.Score)),
				)
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
