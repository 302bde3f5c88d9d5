// Package sessioncmder provides the session command group for creating,
// listing, and managing conversation sessions.
package sessioncmder

import (
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const sessionLongDesc string = `Manage conversation sessions.

A session is a named conversation with its own tree of branches. Exactly
one session is current at a time; new branches and messages land there
unless a session id is given explicitly.

Use subcommands to work with sessions:
  loom session new <name>       Create a session and switch to it
  loom session list             List all sessions
  loom session switch <id>      Make a session current
  loom session rename <name>    Rename the current session
  loom session extend           Push out the current session's expiry

Examples:
  loom session new "auth refactor"
  loom session switch 3f1c9b2a-...
  loom session extend --days 14`

const sessionShortDesc string = "Manage conversation sessions"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSwitchCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newExtendCmd())

	return cmd
}

func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	return workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
}
