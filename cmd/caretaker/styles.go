package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/caretaker/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// row renders cells padded to widths.
func row(widths []int, cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		parts[i] = lipgloss.NewStyle().Width(w).Render(c)
	}
	return strings.Join(parts, "  ")
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + valueStyle.Render(value)
}

// gauge renders a 0-100 value coloured by how worrying it is.
func gauge(v int) string {
	s := fmt.Sprintf("%3d", v)
	switch {
	case v < 20:
		return badStyle.Render(s)
	case v < 50:
		return warnStyle.Render(s)
	default:
		return okStyle.Render(s)
	}
}

func urgencyStyle(u models.Urgency) lipgloss.Style {
	switch u {
	case models.UrgencyHigh:
		return badStyle
	case models.UrgencyMedium:
		return warnStyle
	default:
		return okStyle
	}
}

func stateStyle(s models.MonitorState) lipgloss.Style {
	switch s {
	case models.MonitorEnding:
		return badStyle
	case models.MonitorStarting:
		return warnStyle
	default:
		return okStyle
	}
}
