// Package branchcmder provides the branch command group for forking,
// listing, and managing branches within the current session.
package branchcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const branchLongDesc string = `Manage branches in the current session.

A branch is one path through a conversation. Forking a branch copies its
history up to the fork point; the fork and the parent then evolve
independently. Branch ids are uuids, but any command that takes a branch
accepts its name too, as long as the name is unique in the session.

Use subcommands to work with branches:
  loom branch create            Fork the current branch
  loom branch list              List the session's branches
  loom branch switch <ref>      Point the workspace at a branch
  loom branch archive <ref>     Shelve a branch
  loom branch restore <ref>     Bring an archived branch back
  loom branch bookmark <ref>    Protect a branch from cleanup
  loom branch rename <ref>      Rename a branch
  loom branch feedback <ref>    Record a quality score

Examples:
  loom branch create --name try-recursion --at 4
  loom branch create --preset explore
  loom branch switch try-recursion
  loom branch bookmark try-recursion`

const branchShortDesc string = "Manage branches in the current session"

func NewBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: branchShortDesc,
		Long:  branchLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSwitchCmd())
	cmd.AddCommand(newArchiveCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newBookmarkCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newFeedbackCmd())

	return cmd
}

func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	return workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
}

// position resolves where the workspace currently points, erroring with a
// hint when no session exists yet.
func position(ctx context.Context, ws *workspace.Workspace) (*dotdir.Pointer, error) {
	pointer, err := ws.Position(ctx)
	if err != nil {
		return nil, fmt.Errorf("no current session: %w (create one with: loom session new <name>)", err)
	}
	return pointer, nil
}

// resolve turns a branch id or unique name into the branch itself, scoped to
// the current session.
func resolve(ctx context.Context, ws *workspace.Workspace, ref string) (*conversation.Branch, error) {
	pointer, err := position(ctx, ws)
	if err != nil {
		return nil, err
	}
	return ws.ResolveBranch(ctx, pointer.SessionID, ref)
}
