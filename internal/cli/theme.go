package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal styles shared by every command.

const (
	iconFire   = "🔥"
	iconStar   = "⭐"
	iconTrophy = "🏆"
	iconShield = "🛡️"
	iconTimer  = "🍅"
	iconLock   = "🔒"
	iconBell   = "🔔"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	h2Style    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	goldStyle  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	mutedStyle = lipgloss.NewStyle().Foreground(cMuted)

	panelStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

func heading(icon, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return titleStyle.Render(icon + title)
}

func labelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", keyStyle.Render(label+":"), value)
}
