// Package versioncmder
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build info",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("%s %s\n", cliui.KeyStyle.Render("Version:"), utils.Version)
			fmt.Printf("%s %s\n", cliui.KeyStyle.Render("Sha:"), utils.Sha)
			fmt.Printf("%s %s\n", cliui.KeyStyle.Render("Built:"), utils.Buildtime)
			return nil
		},
	}

	return cmd
}
