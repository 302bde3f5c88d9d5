package sessioncmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const listLongDesc string = `List all sessions.

Shows every session in the store with its id, name, expiry, and whether
it is the current session.

Examples:
  loom session list`

const listShortDesc string = "List all sessions"

func newListCmd() *cobra.Command {
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

			sessions, err := ws.Service.Sessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No sessions. Create one with: loom session new <name>"))
				return nil
			}

			fmt.Println()
			for _, s := range sessions {
				marker := " "
				if s.Current {
					marker = cliui.ActiveStyle.Render("*")
				}

				expiry := s.ExpiresAt.Local().Format("2006-01-02")
				if s.ExpiresAt.Before(time.Now()) {
					expiry = "expired " + expiry
				}

				fmt.Printf("  %s %s  %s %s\n",
					marker,
					cliui.NameStyle.Render(s.Name),
					cliui.HashStyle.Render(s.ID),
					cliui.DimStyle.Render("(expires "+expiry+")"),
				)
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
