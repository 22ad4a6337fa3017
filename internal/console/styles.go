package console

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	persona lipgloss.Style
	status  map[string]lipgloss.Style
	idle    lipgloss.Style
	errBox  lipgloss.Style
	reply   lipgloss.Style
	muted   lipgloss.Style
}

func defaultStyles() styles {
	status := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		persona: lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		status: map[string]lipgloss.Style{
			"listening": status("42"),
			"thinking":  status("214"),
			"speaking":  status("81"),
		},
		idle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errBox: lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1),
		reply: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
