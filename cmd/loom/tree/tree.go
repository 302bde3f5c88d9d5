// Package treecmder provides the tree command for rendering the current
// session's branch tree.
package treecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/tree"
	"github.com/loomworks/loom/pkg/workspace"
)

const treeLongDesc string = `Render the current session's branch tree.

Prints the branch hierarchy depth-first with status, fork point, and
bookmark markers. The branch the workspace points at is highlighted.

Examples:
  loom tree`

const treeShortDesc string = "Show the session's branch tree"

func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: treeShortDesc,
		Long:  treeLongDesc,
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

			session, err := ws.Service.Session(ctx, pointer.SessionID)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			t, err := ws.Manager.SessionTree(ctx, pointer.SessionID)
			if err != nil {
				return fmt.Errorf("building tree: %w", err)
			}

			fmt.Printf("\n  %s %s\n\n", cliui.HeaderStyle.Render("Session:"), cliui.NameStyle.Render(session.Name))
			fmt.Println(tree.Render(t, pointer.BranchID))
			return nil
		},
	}

	return cmd
}
