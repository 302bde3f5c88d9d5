package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/utils"
)

const listLongDesc string = `List the current session's branches.

By default prints a flat listing sorted by creation order. Filter with
--status (active, archived, merged) or --bookmarked.

Examples:
  loom branch list
  loom branch list --status archived
  loom branch list --bookmarked`

const listShortDesc string = "List the session's branches"

func newListCmd() *cobra.Command {
	var (
		status     string
		bookmarked bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			pointer, err := position(ctx, ws)
			if err != nil {
				return err
			}

			filter := storage.BranchFilter{Bookmarked: bookmarked}
			if status != "" {
				filter.Status = conversation.Status(status)
				if !filter.Status.Valid() {
					return fmt.Errorf("unknown status %q (want active, archived, or merged)", status)
				}
			}

			branches, err := ws.Service.Branches(ctx, pointer.SessionID, filter)
			if err != nil {
				return fmt.Errorf("listing branches: %w", err)
			}

			if len(branches) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No branches match."))
				return nil
			}

			fmt.Println()
			for _, b := range branches {
				marker := " "
				if b.ID == pointer.BranchID {
					marker = cliui.ActiveStyle.Render("*")
				}

				mark := ""
				if b.Bookmarked() {
					mark = " " + cliui.BookmarkMark
				}

				line := fmt.Sprintf("  %s %s%s  %s %s",
					marker,
					cliui.NameStyle.Render(b.Name),
					mark,
					cliui.StatusStyle(string(b.Status)).Render(string(b.Status)),
					cliui.DimStyle.Render(b.ID),
				)
				if b.Description != "" {
					line += "  " + cliui.PreviewStyle.Render(utils.Truncate(b.Description, 48))
				}
				fmt.Println(line)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (active, archived, merged)")
	cmd.Flags().BoolVar(&bookmarked, "bookmarked", false, "Only bookmarked branches")

	return cmd
}
