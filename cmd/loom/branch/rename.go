package branchcmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const renameLongDesc string = `Rename a branch.

Sets a new name and optionally a new description. Names only need to be
unique if you want to address the branch by name later.

Examples:
  loom branch rename old-name new-name
  loom branch rename old-name new-name --description "the winning approach"`

const renameShortDesc string = "Rename a branch"

func newRenameCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "rename <id|name> <new-name>",
		Short: renameShortDesc,
		Long:  renameLongDesc,
		Args:  cobra.ExactArgs(2),
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

			desc := b.Description
			if cmd.Flags().Changed("description") {
				desc = description
			}

			if err := ws.Service.Rename(ctx, b.ID, args[1], desc); err != nil {
				return fmt.Errorf("renaming branch: %w", err)
			}

			fmt.Printf("\n  %s Renamed %s to %s\n\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(b.Name),
				cliui.NameStyle.Render(args[1]),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "New branch description")

	return cmd
}

const feedbackLongDesc string = `Record a quality score for a branch.

The score must be between 0 and 1 and feeds into branch scoring and "next
branch" suggestions.

Examples:
  loom branch feedback the-good-one 0.9`

const feedbackShortDesc string = "Record a quality score"

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <id|name> <score>",
		Short: feedbackShortDesc,
		Long:  feedbackLongDesc,
		Args:  cobra.ExactArgs(2),
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

			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parsing score %q: %w", args[1], err)
			}

			if err := ws.Manager.RecordFeedback(ctx, b.ID, score); err != nil {
				return fmt.Errorf("recording feedback: %w", err)
			}

			fmt.Printf("\n  %s Recorded feedback %s for %s\n\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(args[1]),
				cliui.NameStyle.Render(b.Name),
			)
			return nil
		},
	}

	return cmd
}
