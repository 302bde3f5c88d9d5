package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const archiveLongDesc string = `Archive a branch.

Archived branches keep their history and can still be read, compared, and
exported, but reject new messages until restored. Archiving an already
archived branch is a no-op.

Examples:
  loom branch archive dead-end`

const archiveShortDesc string = "Shelve a branch"

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <id|name>",
		Short: archiveShortDesc,
		Long:  archiveLongDesc,
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

			archived, err := ws.Service.Archive(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("archiving branch: %w", err)
			}

			fmt.Printf("\n  %s Archived %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(archived.Name),
				cliui.DimStyle.Render(archived.ID),
			)
			return nil
		},
	}

	return cmd
}

const restoreLongDesc string = `Restore an archived branch.

Brings the branch back to active so it accepts messages again.

Examples:
  loom branch restore dead-end`

const restoreShortDesc string = "Bring an archived branch back"

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restore <id|name>",
		Aliases: []string{"reactivate"},
		Short:   restoreShortDesc,
		Long:    restoreLongDesc,
		Args:    cobra.ExactArgs(1),
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

			restored, err := ws.Service.Reactivate(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("restoring branch: %w", err)
			}

			fmt.Printf("\n  %s Restored %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(restored.Name),
				cliui.DimStyle.Render(restored.ID),
			)
			return nil
		},
	}

	return cmd
}
