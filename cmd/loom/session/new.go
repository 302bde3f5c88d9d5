package sessioncmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/workspace"
)

const newLongDesc string = `Create a new conversation session.

Creates the session with its root branch ("main"), makes it the current
session, and points the workspace at the root branch so the next message
lands there.

Examples:
  loom session new "auth refactor"`

const newShortDesc string = "Create a new session and switch to it"

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: newShortDesc,
		Long:  newLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			return runNew(cmd.Context(), ws, args[0])
		},
	}

	return cmd
}

func runNew(ctx context.Context, ws *workspace.Workspace, name string) error {
	session, root, err := ws.Service.CreateSession(ctx, name)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	err = ws.SavePointer(&dotdir.Pointer{
		SessionID:  session.ID,
		BranchID:   root.ID,
		BranchName: root.Name,
	})
	if err != nil {
		return fmt.Errorf("saving pointer: %w", err)
	}

	fmt.Printf("\n  %s Created session %s\n", cliui.SuccessMark, cliui.NameStyle.Render(session.Name))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Session:"), cliui.HashStyle.Render(session.ID))
	fmt.Printf("  %s  %s %s\n\n",
		cliui.KeyStyle.Render("Branch: "),
		cliui.NameStyle.Render(root.Name),
		cliui.DimStyle.Render(root.ID),
	)
	return nil
}
