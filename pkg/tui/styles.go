package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	nameStyle        = lipgloss.NewStyle().Bold(true)
	descriptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	countStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	detailStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	clearLinkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	clearDisabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
	modalErrorStyle = modalStyle.Copy().BorderForeground(lipgloss.Color("196"))
	modalHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}
