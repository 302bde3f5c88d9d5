// Package cleanupcmder provides the cleanup command for bulk-archiving
// stale branches.
package cleanupcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const cleanupLongDesc string = `Bulk-archive stale branches in the current session.

Strategies:
  max-age   archive active branches with no activity inside the window
  merged    archive branches already folded into a target
  orphans   archive branches that were forked but never extended

Bookmarked branches and the session root survive every strategy. Use
--dry-run to see what would be archived without changing anything.

Examples:
  loom cleanup --strategy merged
  loom cleanup --strategy max-age --max-age-days 14
  loom cleanup --dry-run`

const cleanupShortDesc string = "Bulk-archive stale branches"

func NewCleanupCmd() *cobra.Command {
	var (
		strategy   string
		maxAgeDays uint
		dryRun     bool
	)

	flags := config.DefaultFlags()

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: cleanupShortDesc,
		Long:  cleanupLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			days := maxAgeDays
			if !cmd.Flags().Changed(config.FlagMaxAgeDays) && ws.Config.Cleanup.MaxAgeDays > 0 {
				days = ws.Config.Cleanup.MaxAgeDays
			}

			opts := branch.CleanupOptions{
				Strategy: branch.CleanupStrategy(strategy),
				MaxAge:   time.Duration(days) * 24 * time.Hour,
				DryRun:   dryRun,
			}

			var result *branch.CleanupResult
			err = cliui.Step(cmd.OutOrStdout(), "Scanning branches", func() error {
				var stepErr error
				result, stepErr = ws.Service.Cleanup(ctx, pointer.SessionID, opts)
				return stepErr
			})
			if err != nil {
				return fmt.Errorf("cleaning up: %w", err)
			}

			if len(result.Archived) == 0 {
				fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Nothing to clean up."))
				return nil
			}

			verb := "Archived"
			if result.DryRun {
				verb = "Would archive"
			}
			fmt.Printf("\n  %s %s %d branch(es) (%s)\n",
				cliui.SuccessMark, verb, len(result.Archived), strategy)
			for _, id := range result.Archived {
				b, err := ws.Service.Branch(ctx, id)
				if err != nil {
					fmt.Printf("    %s\n", cliui.DimStyle.Render(id))
					continue
				}
				fmt.Printf("    %s %s\n", cliui.NameStyle.Render(b.Name), cliui.DimStyle.Render(id))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", string(branch.CleanupMaxAge), "Cleanup strategy (max-age, merged, orphans)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report candidates without archiving")
	config.AddUintFlag(cmd, flags, config.FlagMaxAgeDays, &maxAgeDays)

	return cmd
}
