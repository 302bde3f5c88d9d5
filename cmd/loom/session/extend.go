package sessioncmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
)

const extendLongDesc string = `Extend the current session's expiry.

Pushes the session's expiry out by the given number of days from now.
Sessions past their expiry become candidates for cleanup but are never
deleted automatically.

Examples:
  loom session extend
  loom session extend --days 90`

const extendShortDesc string = "Push out the current session's expiry"

func newExtendCmd() *cobra.Command {
	var days uint

	cmd := &cobra.Command{
		Use:   "extend",
		Short: extendShortDesc,
		Long:  extendLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			session, err := ws.Service.CurrentSession(ctx)
			if err != nil {
				return fmt.Errorf("loading current session: %w", err)
			}

			ttl := time.Duration(days) * 24 * time.Hour
			extended, err := ws.Service.ExtendExpiry(ctx, session.ID, ttl)
			if err != nil {
				return fmt.Errorf("extending expiry: %w", err)
			}

			fmt.Printf("\n  %s Session %s now expires %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(extended.Name),
				cliui.ValueStyle.Render(extended.ExpiresAt.Local().Format("2006-01-02")),
			)
			return nil
		},
	}

	cmd.Flags().UintVar(&days, "days", 30, "Days from now until the session expires")

	return cmd
}
