// Package pickcmder provides the pick command for cherry-picking individual
// messages across branches.
package pickcmder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const pickLongDesc string = `Cherry-pick messages from one branch onto another.

Appends the chosen messages to the target in source order. The source
branch stays untouched; unlike a merge, it does not transition to merged.
Messages the target already has are skipped.

The target defaults to the branch the workspace points at.

Examples:
  loom pick try-recursion --messages 4f...,9c...
  loom pick try-recursion --into main --messages 4f...`

const pickShortDesc string = "Cherry-pick messages onto a branch"

func NewPickCmd() *cobra.Command {
	var (
		into     string
		messages string
	)

	cmd := &cobra.Command{
		Use:   "pick <source>",
		Short: pickShortDesc,
		Long:  pickLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			ids := splitIDs(messages)
			if len(ids) == 0 {
				return fmt.Errorf("no message ids given (use --messages id,id,...)")
			}

			pointer, err := ws.Position(ctx)
			if err != nil {
				return fmt.Errorf("no current session: %w", err)
			}

			source, err := ws.ResolveBranch(ctx, pointer.SessionID, args[0])
			if err != nil {
				return fmt.Errorf("resolving source %q: %w", args[0], err)
			}

			targetID := pointer.BranchID
			targetName := pointer.BranchName
			if into != "" {
				target, err := ws.ResolveBranch(ctx, pointer.SessionID, into)
				if err != nil {
					return fmt.Errorf("resolving target %q: %w", into, err)
				}
				targetID = target.ID
				targetName = target.Name
			}

			result, err := ws.Service.SelectiveMerge(ctx, source.ID, targetID, ids)
			if err != nil {
				return fmt.Errorf("cherry-picking: %w", err)
			}

			fmt.Printf("\n  %s Picked %s message(s) from %s onto %s\n\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(strconv.Itoa(len(result.Appended))),
				cliui.NameStyle.Render(source.Name),
				cliui.NameStyle.Render(targetName),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&into, "into", "", "Target branch id or name (defaults to the current branch)")
	cmd.Flags().StringVar(&messages, "messages", "", "Comma-separated message ids to pick")

	return cmd
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
