package branchcmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/manager"
)

const createLongDesc string = `Fork a new branch.

Forks from the branch the workspace points at (or from --from) at its tip,
or at an earlier point with --at. The fork copies the parent's history up
to the fork point; from there the two diverge. The workspace is switched
to the new branch.

When --name is omitted, a name is derived from the conversation topic near
the fork point. Presets prefix the name and seed metadata:
  explore    for trying an alternative approach
  debug      for chasing a problem

Examples:
  loom branch create --name try-recursion
  loom branch create --at 4 --description "before the refactor"
  loom branch create --preset explore --from main`

const createShortDesc string = "Fork a new branch"

func newCreateCmd() *cobra.Command {
	var (
		name        string
		description string
		preset      string
		from        string
		at          int
	)

	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"new", "fork"},
		Short:   createShortDesc,
		Long:    createLongDesc,
		Args:    cobra.NoArgs,
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

			parentID := pointer.BranchID
			if from != "" {
				parent, err := ws.ResolveBranch(ctx, pointer.SessionID, from)
				if err != nil {
					return fmt.Errorf("resolving parent %q: %w", from, err)
				}
				parentID = parent.ID
			}

			req := branch.ForkRequest{
				SessionID:   pointer.SessionID,
				ParentID:    parentID,
				Name:        name,
				Description: description,
			}
			if cmd.Flags().Changed("at") {
				req.ForkAt = &at
			}

			var b *conversation.Branch
			if preset != "" {
				b, err = ws.Manager.ForkPreset(ctx, req, manager.Preset(preset))
			} else {
				b, err = ws.Service.Fork(ctx, req)
			}
			if err != nil {
				return fmt.Errorf("forking branch: %w", err)
			}

			err = ws.SavePointer(&dotdir.Pointer{
				SessionID:  pointer.SessionID,
				BranchID:   b.ID,
				BranchName: b.Name,
			})
			if err != nil {
				return fmt.Errorf("saving pointer: %w", err)
			}

			fmt.Printf("\n  %s Forked %s %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(b.Name),
				cliui.DimStyle.Render(b.ID),
			)
			fmt.Printf("  %s  %s\n\n",
				cliui.KeyStyle.Render("Fork point:"),
				cliui.ValueStyle.Render(strconv.Itoa(b.ForkPoint)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Branch name (derived from the conversation when empty)")
	cmd.Flags().StringVar(&description, "description", "", "Branch description")
	cmd.Flags().StringVar(&preset, "preset", "", "Creation preset (explore or debug)")
	cmd.Flags().StringVar(&from, "from", "", "Parent branch id or name (defaults to the current branch)")
	cmd.Flags().IntVar(&at, "at", 0, "Parent sequence number to fork at (defaults to the tip)")

	return cmd
}
