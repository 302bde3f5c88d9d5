// Package searchcmder provides the search command for finding messages
// across branches.
package searchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const searchLongDesc string = `Search message content across branches.

Matches are substring, case-insensitive, scoped to the current session by
default. Pass --all-sessions to search the whole store. Each hit shows the
branch, the turn number, and a snippet around the match.

Examples:
  loom search "rate limiter"
  loom search recursion --all-sessions`

const searchShortDesc string = "Search message content"

func NewSearchCmd() *cobra.Command {
	var allSessions bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			sessionID := ""
			if !allSessions {
				pointer, err := ws.Position(ctx)
				if err != nil {
					return fmt.Errorf("no current session: %w", err)
				}
				sessionID = pointer.SessionID
			}

			hits, err := ws.Service.Search(ctx, sessionID, args[0])
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}

			if len(hits) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No matches."))
				return nil
			}

			fmt.Println()
			for _, hit := range hits {
				fmt.Printf("  %s %s %s %s\n",
					cliui.NameStyle.Render(hit.BranchName),
					cliui.DimStyle.Render(fmt.Sprintf("#%d", hit.Sequence)),
					cliui.RoleStyle.Render("["+string(hit.Role)+"]"),
					cliui.PreviewStyle.Render(hit.Snippet),
				)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVar(&allSessions, "all-sessions", false, "Search every session, not just the current one")

	return cmd
}
