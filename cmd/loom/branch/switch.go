package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/dotdir"
)

const switchLongDesc string = `Point the workspace at a branch.

Subsequent messages, merges, and exports default to this branch. Accepts a
branch id or a name that is unique within the session.

Examples:
  loom branch switch try-recursion
  loom branch switch 9b2a3f1c-...`

const switchShortDesc string = "Point the workspace at a branch"

func newSwitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch <id|name>",
		Short: switchShortDesc,
		Long:  switchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			b, err := resolve(ctx, ws, args[0])
			if err != nil {
				return fmt.Errorf("resolving branch %q: %w", args[0], err)
			}

			err = ws.SavePointer(&dotdir.Pointer{
				SessionID:  b.SessionID,
				BranchID:   b.ID,
				BranchName: b.Name,
			})
			if err != nil {
				return fmt.Errorf("saving pointer: %w", err)
			}

			fmt.Printf("\n  %s Switched to %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(b.Name),
				cliui.DimStyle.Render(b.ID),
			)
			return nil
		},
	}

	return cmd
}
