package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the viewer.
type Styles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Online    lipgloss.Style
	Offline   lipgloss.Style
	Pane      lipgloss.Style
	PaneTitle lipgloss.Style
	Branch    lipgloss.Style
	Cursor    lipgloss.Style
	Selected  lipgloss.Style
	Muted     lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7c3aed")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444")),
		Online:    lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")),
		Offline:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		Pane:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4b5563")).Padding(0, 1),
		PaneTitle: lipgloss.NewStyle().Bold(true).Underline(true),
		Branch:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")),
		Cursor:    lipgloss.NewStyle().Reverse(true),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563eb")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")),
	}
}
