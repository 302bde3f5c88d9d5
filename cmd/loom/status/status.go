// Package statuscmder provides the status command for displaying where the
// workspace currently points.
package statuscmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/utils"
	"github.com/loomworks/loom/pkg/workspace"
)

const statusLongDesc string = `Show where the workspace currently points.

Reads the local .loom/ directory (or ~/.loom/) to display the current
session, the branch new messages land on, and a preview of that branch's
history.

If no session exists yet, says so.

Examples:
  loom status`

const statusShortDesc string = "Show the current session and branch"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")
			return runStatus(cmd, configDir, debug)
		},
	}

	return cmd
}

func runStatus(cmd *cobra.Command, configDir string, debug bool) error {
	ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()

	pointer, err := ws.Position(ctx)
	if err != nil {
		fmt.Printf("  %s No session. Start one with: loom session new <name>\n", cliui.DimStyle.Render("●"))
		return nil
	}

	session, err := ws.Service.Session(ctx, pointer.SessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	b, err := ws.Service.Branch(ctx, pointer.BranchID)
	if err != nil {
		return fmt.Errorf("loading branch: %w", err)
	}

	turns, err := ws.Service.History(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	fmt.Printf("\n  %s  %s %s\n", cliui.KeyStyle.Render("Session: "), cliui.NameStyle.Render(session.Name), cliui.DimStyle.Render(session.ID))
	fmt.Printf("  %s  %s %s %s\n",
		cliui.KeyStyle.Render("Branch:  "),
		cliui.NameStyle.Render(b.Name),
		cliui.StatusStyle(string(b.Status)).Render(string(b.Status)),
		cliui.DimStyle.Render(b.ID),
	)
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Messages:"), cliui.ValueStyle.Render(strconv.Itoa(len(turns))))

	for _, turn := range turns {
		preview := utils.Truncate(turn.Content, 72)
		fmt.Printf("  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", turn.Sequence)),
			cliui.RoleStyle.Render("["+string(turn.Role)+"]"),
			cliui.PreviewStyle.Render(preview),
		)
	}

	fmt.Println()
	return nil
}
