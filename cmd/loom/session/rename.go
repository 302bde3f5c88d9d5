package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const renameLongDesc string = `Rename the current session.

The rename is guarded by the session's version token, so a concurrent
change to the same session surfaces as a conflict instead of being
silently overwritten.

Examples:
  loom session rename "auth refactor v2"`

const renameShortDesc string = "Rename the current session"

func newRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <name>",
		Short: renameShortDesc,
		Long:  renameLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			session, err := ws.Service.CurrentSession(ctx)
			if err != nil {
				return fmt.Errorf("loading current session: %w", err)
			}

			renamed, err := ws.Service.RenameSession(ctx, session.ID, args[0], session.Version)
			if err != nil {
				return fmt.Errorf("renaming session: %w", err)
			}

			fmt.Printf("\n  %s Renamed session to %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(renamed.Name),
			)
			return nil
		},
	}

	return cmd
}
