package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const bookmarkLongDesc string = `Bookmark a branch.

Bookmarked branches are protected from every cleanup strategy and shown
with a star in listings. Use --remove to drop the bookmark.

Examples:
  loom branch bookmark the-good-one
  loom branch bookmark the-good-one --remove`

const bookmarkShortDesc string = "Protect a branch from cleanup"

func newBookmarkCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "bookmark <id|name>",
		Short: bookmarkShortDesc,
		Long:  bookmarkLongDesc,
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

			if remove {
				if err := ws.Manager.Unbookmark(ctx, b.ID); err != nil {
					return fmt.Errorf("removing bookmark: %w", err)
				}
				fmt.Printf("\n  %s Removed bookmark from %s\n\n",
					cliui.SuccessMark,
					cliui.NameStyle.Render(b.Name),
				)
				return nil
			}

			if err := ws.Manager.Bookmark(ctx, b.ID); err != nil {
				return fmt.Errorf("bookmarking branch: %w", err)
			}

			fmt.Printf("\n  %s %s Bookmarked %s\n\n",
				cliui.SuccessMark,
				cliui.BookmarkMark,
				cliui.NameStyle.Render(b.Name),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the bookmark instead of adding it")

	return cmd
}
