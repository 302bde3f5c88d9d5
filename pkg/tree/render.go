package tree

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomworks/loom/pkg/conversation"
)

var (
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	archivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	mergedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("105"))
	edgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	bookmarkMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("★")
)

// Render returns a depth-first text rendering of the tree with the current
// branch annotated.
func Render(t *Tree, currentID string) string {
	var b strings.Builder

	t.Walk(func(n *Node, depth int) bool {
		indent := edgeStyle.Render(strings.Repeat("│  ", max(depth-1, 0)))
		if depth > 0 {
			indent += edgeStyle.Render("├─ ")
		}

		style := styleFor(n.Status)
		line := style.Render(n.Name)
		if n.ID == currentID {
			line = currentStyle.Render(n.Name + " ←")
		}
		if n.Bookmarked() {
			line += " " + bookmarkMark
		}

		fmt.Fprintf(&b, "%s%s %s\n", indent, line,
			archivedStyle.Render("("+string(n.Status)+")"))
		return true
	})

	return b.String()
}

func styleFor(status conversation.Status) lipgloss.Style {
	switch status {
	case conversation.StatusArchived:
		return archivedStyle
	case conversation.StatusMerged:
		return mergedStyle
	}
	return activeStyle
}
