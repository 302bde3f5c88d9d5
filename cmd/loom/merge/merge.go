// Package mergecmder provides the merge command for folding branches back
// together.
package mergecmder

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/utils"
	"github.com/loomworks/loom/pkg/workspace"
)

const mergeLongDesc string = `Merge one or more branches into a target.

Source messages the target does not already have are appended to the
target in order, then the sources transition to merged. When a source and
the target both changed the same turn position, the strategy decides:

  keep-target   keep the target's message, drop the source's
  keep-source   keep the source's message (later sources win)
  manual        abort and list every conflict, changing nothing

The target defaults to the branch the workspace points at.

Examples:
  loom merge try-recursion
  loom merge try-recursion try-iteration --into main
  loom merge try-recursion --strategy manual`

const mergeShortDesc string = "Fold branches into a target"

func NewMergeCmd() *cobra.Command {
	var (
		into     string
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "merge <source> [source...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			pointer, err := ws.Position(ctx)
			if err != nil {
				return fmt.Errorf("no current session: %w", err)
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

			sources := make([]string, 0, len(args))
			for _, ref := range args {
				src, err := ws.ResolveBranch(ctx, pointer.SessionID, ref)
				if err != nil {
					return fmt.Errorf("resolving source %q: %w", ref, err)
				}
				sources = append(sources, src.ID)
			}

			strat := branch.Strategy(strategy)
			if !strat.Valid() {
				return fmt.Errorf("unknown strategy %q (want keep-target, keep-source, or manual)", strategy)
			}

			result, err := ws.Service.Merge(ctx, sources, targetID, strat)
			if err != nil {
				var conflict *branch.MergeConflictError
				if errors.As(err, &conflict) {
					printConflicts(conflict)
					return err
				}
				return fmt.Errorf("merging: %w", err)
			}

			fmt.Printf("\n  %s Merged %d branch(es) into %s\n",
				cliui.SuccessMark,
				len(result.Merged),
				cliui.NameStyle.Render(targetName),
			)
			fmt.Printf("  %s  %s\n",
				cliui.KeyStyle.Render("Appended: "),
				cliui.ValueStyle.Render(strconv.Itoa(len(result.Appended))),
			)
			if result.ConflictsResolved > 0 {
				fmt.Printf("  %s  %s\n",
					cliui.KeyStyle.Render("Conflicts:"),
					cliui.WarnStyle.Render(fmt.Sprintf("%d resolved by %s", result.ConflictsResolved, strategy)),
				)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&into, "into", "", "Target branch id or name (defaults to the current branch)")
	cmd.Flags().StringVar(&strategy, "strategy", string(branch.StrategyKeepTarget), "Conflict strategy (keep-target, keep-source, manual)")

	return cmd
}

func printConflicts(err *branch.MergeConflictError) {
	fmt.Printf("\n  %s Merge aborted: %d conflicting turn position(s)\n\n", cliui.FailMark, len(err.Conflicts))
	for _, c := range err.Conflicts {
		fmt.Printf("  %s\n", cliui.HeaderStyle.Render(fmt.Sprintf("Position %d", c.Position)))
		fmt.Printf("    %s %s\n",
			cliui.KeyStyle.Render("ours:  "),
			cliui.PreviewStyle.Render(utils.Truncate(c.Ours.Content, 64)),
		)
		fmt.Printf("    %s %s\n",
			cliui.KeyStyle.Render("theirs:"),
			cliui.PreviewStyle.Render(utils.Truncate(c.Theirs.Content, 64)),
		)
	}
	fmt.Println()
}
