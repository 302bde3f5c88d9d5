// Package export serializes resolved branch histories to JSON, Markdown,
// CSV, and plain text. Export is a pure read: it mutates nothing and needs
// no transaction.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/loomworks/loom/pkg/conversation"
)

// Format is one of the supported export serializations.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatText, "txt", "plain":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// BranchExport is one branch's data prepared for serialization.
type BranchExport struct {
	Branch *conversation.Branch `json:"branch"`
	Turns  []*conversation.Turn `json:"turns"`
}

// Write serializes the branches to w in the given format.
func Write(w io.Writer, branches []BranchExport, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, branches)
	case FormatMarkdown:
		return writeMarkdown(w, branches)
	case FormatCSV:
		return writeCSV(w, branches)
	case FormatText:
		return writeText(w, branches)
	}
	return fmt.Errorf("unknown export format %q", format)
}

func writeJSON(w io.Writer, branches []BranchExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ExportedAt time.Time      `json:"exported_at"`
		Branches   []BranchExport `json:"branches"`
	}{
		ExportedAt: time.Now().UTC(),
		Branches:   branches,
	})
}

func writeMarkdown(w io.Writer, branches []BranchExport) error {
	for i, be := range branches {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}

		fmt.Fprintf(w, "## %s\n\n", be.Branch.Name)
		if be.Branch.Description != "" {
			fmt.Fprintf(w, "_%s_\n\n", be.Branch.Description)
		}
		fmt.Fprintf(w, "- Status: %s\n- Created: %s\n- Messages: %d\n\n",
			be.Branch.Status,
			be.Branch.CreatedAt.Format(time.RFC3339),
			len(be.Turns))

		for _, t := range be.Turns {
			fmt.Fprintf(w, "**%s** (%d):\n\n%s\n\n", t.Message.Role, t.Sequence, t.Message.Content)
		}
	}
	return nil
}

func writeCSV(w io.Writer, branches []BranchExport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"branch_id", "branch_name", "sequence", "role", "content", "created_at"}); err != nil {
		return err
	}

	for _, be := range branches {
		for _, t := range be.Turns {
			record := []string{
				be.Branch.ID,
				be.Branch.Name,
				strconv.Itoa(t.Sequence),
				string(t.Message.Role),
				t.Message.Content,
				t.Message.CreatedAt.Format(time.RFC3339),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, branches []BranchExport) error {
	for i, be := range branches {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}

		fmt.Fprintf(w, "=== %s (%s) ===\n", be.Branch.Name, be.Branch.Status)
		for _, t := range be.Turns {
			fmt.Fprintf(w, "[%s] %s\n", t.Message.Role, t.Message.Content)
		}
	}
	return nil
}
