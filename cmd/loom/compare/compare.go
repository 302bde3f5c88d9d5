// Package comparecmder provides the compare command for diffing branch
// histories side by side.
package comparecmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/utils"
	"github.com/loomworks/loom/pkg/workspace"
)

const compareLongDesc string = `Compare two or more branches.

Aligns the branches' histories turn by turn and reports the shared prefix
plus every index where they diverge. Diffing is whole-message; a turn
either matches across all branches or every variant is shown.

Branches are given as ids or session-unique names.

Examples:
  loom compare main try-recursion
  loom compare main try-recursion try-iteration`

const compareShortDesc string = "Compare branch histories"

func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <branch> <branch> [branch...]",
		Short: compareShortDesc,
		Long:  compareLongDesc,
		Args:  cobra.MinimumNArgs(2),
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

			ids := make([]string, 0, len(args))
			for _, ref := range args {
				b, err := ws.ResolveBranch(ctx, pointer.SessionID, ref)
				if err != nil {
					return fmt.Errorf("resolving branch %q: %w", ref, err)
				}
				ids = append(ids, b.ID)
			}

			comparison, err := ws.Manager.Compare(ctx, ids)
			if err != nil {
				return fmt.Errorf("comparing branches: %w", err)
			}

			fmt.Printf("\n  %s %s turns\n\n",
				cliui.KeyStyle.Render("Shared prefix:"),
				cliui.ValueStyle.Render(strconv.Itoa(comparison.SharedPrefix)),
			)

			if len(comparison.Divergences) == 0 {
				fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No divergences. The branches are identical."))
				return nil
			}

			for _, d := range comparison.Divergences {
				fmt.Printf("  %s\n", cliui.HeaderStyle.Render(fmt.Sprintf("Turn %d", d.Index)))
				for _, v := range d.Variants {
					if v.Turn == nil {
						fmt.Printf("    %s %s\n",
							cliui.NameStyle.Render(v.BranchName),
							cliui.DimStyle.Render("(no message)"),
						)
						continue
					}
					fmt.Printf("    %s %s %s\n",
						cliui.NameStyle.Render(v.BranchName),
						cliui.RoleStyle.Render("["+string(v.Turn.Role)+"]"),
						cliui.PreviewStyle.Render(utils.Truncate(v.Turn.Content, 64)),
					)
				}
				fmt.Println()
			}
			return nil
		},
	}

	return cmd
}
