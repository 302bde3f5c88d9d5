package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/dotdir"
)

const switchLongDesc string = `Switch the current session.

Moves the current-session marker to the given session and points the
workspace at that session's root branch. Use "loom branch switch" to move
to a specific branch afterwards.

Examples:
  loom session switch 3f1c9b2a-...`

const switchShortDesc string = "Make a session current"

func newSwitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "switch <session-id>",
		Aliases: []string{"use"},
		Short:   switchShortDesc,
		Long:    switchLongDesc,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			id := args[0]

			if err := ws.Service.SwitchSession(ctx, id); err != nil {
				return fmt.Errorf("switching session: %w", err)
			}

			session, err := ws.Service.Session(ctx, id)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			root, err := ws.ResolveBranch(ctx, id, branch.RootBranchName)
			if err != nil {
				return fmt.Errorf("resolving root branch: %w", err)
			}

			err = ws.SavePointer(&dotdir.Pointer{
				SessionID:  session.ID,
				BranchID:   root.ID,
				BranchName: root.Name,
			})
			if err != nil {
				return fmt.Errorf("saving pointer: %w", err)
			}

			fmt.Printf("\n  %s Switched to session %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(session.Name),
				cliui.DimStyle.Render(session.ID),
			)
			return nil
		},
	}

	return cmd
}
