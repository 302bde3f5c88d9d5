package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const deleteLongDesc string = `Permanently delete a branch.

Only archived or merged branches can be deleted, and only when no other
branch forked from them. Export first if you want to keep the transcript:
deletion removes the branch and its history links for good (the messages
themselves survive wherever other branches share them).

Examples:
  loom branch archive dead-end
  loom export dead-end --out dead-end.json
  loom branch delete dead-end`

const deleteShortDesc string = "Permanently delete an archived branch"

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
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

			if err := ws.Service.Delete(ctx, b.ID); err != nil {
				return fmt.Errorf("deleting branch: %w", err)
			}

			fmt.Printf("\n  %s Deleted %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(b.Name),
				cliui.DimStyle.Render(b.ID),
			)
			return nil
		},
	}

	return cmd
}
