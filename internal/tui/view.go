package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/caretaker/internal/models"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle  = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	goodStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle = lipgloss.NewStyle().Foreground(warningColor)
	badStyle  = lipgloss.NewStyle().Foreground(errorColor)
)

func formatState(s models.MonitorState) string {
	switch s {
	case models.MonitorStarting:
		return warnStyle.Render("● starting")
	case models.MonitorEnding:
		return badStyle.Render("● ending")
	default:
		return goodStyle.Render("● " + string(s))
	}
}

func gauge(label string, v int) string {
	const width = 20
	filled := v * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	style := goodStyle
	switch {
	case v < 20:
		style = badStyle
	case v < 50:
		style = warnStyle
	}
	return fmt.Sprintf("%s %s %3d", labelStyle.Render(fmt.Sprintf("%-10s", label)), style.Render(bar), v)
}

// renderAccount lays out the detail screen.
func renderAccount(d *AccountDetail) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Status"))
	b.WriteString("\n")
	if d.Snapshot == nil {
		b.WriteString(helpStyle.Render("No status recorded yet"))
		b.WriteString("\n")
	} else {
		s := d.Snapshot.Snapshot
		for _, g := range []struct {
			label string
			v     int
		}{
			{"Energy", s.Energy},
			{"Clean", s.Cleanliness},
			{"Health", s.Health},
			{"Hunger", s.Satiety},
			{"Happiness", s.Mood},
		} {
			b.WriteString(gauge(g.label, g.v))
			b.WriteString("\n")
		}
		state := "awake"
		if s.Resting {
			state = "sleeping"
		}
		if s.Location != nil {
			state += " in " + string(*s.Location)
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Pet")), state)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Captured")), s.CapturedAt.Local().Format(time.DateTime))
	}

	b.WriteString(sectionStyle.Render("Decisions"))
	b.WriteString("\n")
	if len(d.Decisions) == 0 {
		b.WriteString(helpStyle.Render("none"))
		b.WriteString("\n")
	}
	for _, rec := range d.Decisions {
		fmt.Fprintf(&b, "%s  %-9s %-6s %-10s %s\n",
			rec.CreatedAt.Local().Format(time.TimeOnly), rec.Action, rec.Urgency, rec.Source, rec.Rationale)
	}

	if len(d.Errors) > 0 {
		b.WriteString(sectionStyle.Render("Errors"))
		b.WriteString("\n")
		for _, e := range d.Errors {
			fmt.Fprintf(&b, "%s  %s\n", e.CreatedAt.Local().Format(time.TimeOnly), badStyle.Render(e.Message))
		}
	}
	return b.String()
}
