package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1),
		section: r.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
		label: r.NewStyle().
			Foreground(lipgloss.Color("45")),
		value: r.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		ok: r.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true),
		err: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}
