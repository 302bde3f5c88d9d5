package cliui

import "github.com/charmbracelet/lipgloss"

// Shared lipgloss styles for loom command output. Commands compose these
// rather than defining their own colors so output stays consistent.
var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true)
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	HashStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	RoleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	PreviewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)

	// Branch status colors used by list and tree output.
	ActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	ArchivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	MergedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("135"))
	BookmarkMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("★")

	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// StatusStyle returns the style for a branch status string.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "archived":
		return ArchivedStyle
	case "merged":
		return MergedStyle
	}
	return ActiveStyle
}
