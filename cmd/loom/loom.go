// Package loomcmder
package loomcmder

import (
	"github.com/spf13/cobra"

	branchcmder "github.com/loomworks/loom/cmd/loom/branch"
	chatcmder "github.com/loomworks/loom/cmd/loom/chat"
	cleanupcmder "github.com/loomworks/loom/cmd/loom/cleanup"
	comparecmder "github.com/loomworks/loom/cmd/loom/compare"
	configcmder "github.com/loomworks/loom/cmd/loom/config"
	exportcmder "github.com/loomworks/loom/cmd/loom/export"
	initcmder "github.com/loomworks/loom/cmd/loom/initcmd"
	mergecmder "github.com/loomworks/loom/cmd/loom/merge"
	pickcmder "github.com/loomworks/loom/cmd/loom/pick"
	searchcmder "github.com/loomworks/loom/cmd/loom/search"
	servecmder "github.com/loomworks/loom/cmd/loom/serve"
	sessioncmder "github.com/loomworks/loom/cmd/loom/session"
	statuscmder "github.com/loomworks/loom/cmd/loom/status"
	suggestcmder "github.com/loomworks/loom/cmd/loom/suggest"
	treecmder "github.com/loomworks/loom/cmd/loom/tree"
	versioncmder "github.com/loomworks/loom/cmd/version"
)

const loomLongDesc string = `Loom is a persistent, branchable conversation store for terminal AI work.

Conversations are sessions holding a tree of branches. Fork a branch to try
an alternative without losing the original, merge the winners back, and
archive the dead ends.

Common commands:
  loom session new <name>   Start a new session
  loom branch new <name>    Fork the current branch
  loom tree                 Show the session's branch tree
  loom merge <branch>       Fold a branch into the current one
  loom chat                 Talk to a model on the current branch`

const loomShortDesc string = "Loom - branchable conversation store"

func NewLoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loom",
		Short: loomShortDesc,
		Long:  loomLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .loom/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(branchcmder.NewBranchCmd())
	cmd.AddCommand(treecmder.NewTreeCmd())
	cmd.AddCommand(suggestcmder.NewSuggestCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(comparecmder.NewCompareCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())
	cmd.AddCommand(pickcmder.NewPickCmd())
	cmd.AddCommand(cleanupcmder.NewCleanupCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(exportcmder.NewExportCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
