package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/loickal/email-insight/internal/api"
)

var (
	colorAccent   = lipgloss.Color("63")
	colorMuted    = lipgloss.Color("240")
	colorHelp     = lipgloss.Color("241")
	colorError    = lipgloss.Color("196")
	colorWarn     = lipgloss.Color("220")
	colorPositive = lipgloss.Color("42")
	colorNegative = lipgloss.Color("196")
	colorNeutral  = lipgloss.Color("244")
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(colorAccent).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1)

	introStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	accountStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	helpStyle = lipgloss.NewStyle().
			Foreground(colorHelp).
			MarginTop(1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorError).
				Padding(0, 1)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Align(lipgloss.Center).
			Padding(1, 4)

	updateStyle = lipgloss.NewStyle().
			Foreground(colorWarn).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarn).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	subjectStyle = lipgloss.NewStyle().Bold(true)

	senderStyle = lipgloss.NewStyle().Foreground(colorMuted)

	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func sentimentColor(s api.Sentiment) lipgloss.Color {
	switch s.Normalize() {
	case api.SentimentPositive:
		return colorPositive
	case api.SentimentNegative:
		return colorNegative
	}
	return colorNeutral
}
