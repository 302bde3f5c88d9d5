// Package exportcmder provides the export command for serializing branch
// histories to portable formats.
package exportcmder

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/cliui"
	"github.com/loomworks/loom/pkg/export"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

const exportLongDesc string = `Export branch histories.

Serializes the given branches (or the current branch when none are given)
with their full resolved histories. Formats: json, markdown, csv, text.
Output goes to stdout unless --out names a file.

Examples:
  loom export
  loom export main try-recursion --format markdown
  loom export main --format markdown --preview
  loom export main --format csv --out main.csv`

const exportShortDesc string = "Export branch histories"

func NewExportCmd() *cobra.Command {
	var (
		format  string
		out     string
		preview bool
	)

	cmd := &cobra.Command{
		Use:   "export [branch...]",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			debug, _ := cmd.Flags().GetBool("debug")

			ws, err := workspace.Open(configDir, logger.New(logger.WithDebug(debug)))
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			pointer, err := ws.Position(ctx)
			if err != nil {
				return fmt.Errorf("no current session: %w", err)
			}

			refs := args
			if len(refs) == 0 {
				refs = []string{pointer.BranchID}
			}

			branches := make([]export.BranchExport, 0, len(refs))
			for _, ref := range refs {
				b, err := ws.ResolveBranch(ctx, pointer.SessionID, ref)
				if err != nil {
					return fmt.Errorf("resolving branch %q: %w", ref, err)
				}

				turns, err := ws.Service.History(ctx, b.ID)
				if err != nil {
					return fmt.Errorf("loading history for %s: %w", b.Name, err)
				}

				branches = append(branches, export.BranchExport{Branch: b, Turns: turns})
			}

			if preview {
				if f != export.FormatMarkdown {
					return fmt.Errorf("--preview only applies to the markdown format")
				}
				var buf bytes.Buffer
				if err := export.Write(&buf, branches, f); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
				rendered, err := cliui.RenderMarkdown(buf.String())
				if err != nil {
					return fmt.Errorf("rendering markdown: %w", err)
				}
				fmt.Print(rendered)
				return nil
			}

			w := os.Stdout
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer file.Close()
				w = file
			}

			if err := export.Write(w, branches, f); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}

			if out != "" {
				fmt.Printf("\n  %s Exported %d branch(es) to %s\n\n",
					cliui.SuccessMark, len(branches), cliui.ValueStyle.Render(out))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format (json, markdown, csv, text)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&preview, "preview", false, "Render markdown output in the terminal")

	return cmd
}
