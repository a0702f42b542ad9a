package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/loickal/email-insight/internal/api"
)

const minCardWidth = 30

// cardStyleFor borders a card in its sentiment color; the selected card gets
// a thick border.
func cardStyleFor(s api.Sentiment, selected bool, width int) lipgloss.Style {
	style := cardStyle.BorderForeground(sentimentColor(s))
	if selected {
		style = style.BorderStyle(lipgloss.ThickBorder())
	}
	if width > 0 {
		style = style.Width(max(width, minCardWidth))
	}
	return style
}

func renderCard(e api.AnalyzedEmail, expanded, selected bool, width int) string {
	subject := cleanLine(e.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	sender := cleanLine(e.Sender())
	if sender == "" {
		sender = "unknown sender"
	}

	marker := "▸"
	if expanded {
		marker = "▾"
	}

	var b strings.Builder
	b.WriteString(subjectStyle.Render(marker + " " + subject))
	b.WriteString("\n")
	b.WriteString(senderStyle.Render("From: " + sender))

	if expanded {
		b.WriteString("\n\n")
		b.WriteString(renderAnalysis(e.Analysis))
	}

	return cardStyleFor(e.Analysis.Sentiment, selected, width).Render(b.String())
}

func renderAnalysis(a api.Analysis) string {
	sentiment := a.Sentiment.Normalize()
	badge := lipgloss.NewStyle().Foreground(sentimentColor(sentiment)).Bold(true).
		Render(string(sentiment))

	var b strings.Builder
	b.WriteString(sectionStyle.Render("Sentiment") + " " + badge + "\n\n")

	b.WriteString(sectionStyle.Render("Summary") + "\n")
	summary := cleanText(a.Summary)
	if summary == "" {
		summary = "No summary."
	}
	b.WriteString(summary + "\n\n")

	b.WriteString(sectionStyle.Render("Action items") + "\n")
	for i, item := range a.ActionItems {
		b.WriteString(strings.TrimRight(fmt.Sprintf("  %d. %s", i+1, cleanLine(item)), " ") + "\n")
	}
	if len(a.ActionItems) == 0 {
		b.WriteString("  None\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderCardList renders the cards that fit in height, keeping the cursor's
// card on screen.
func renderCardList(emails []api.AnalyzedEmail, expanded map[string]bool, cursor, width, height int) string {
	if len(emails) == 0 {
		return ""
	}
	cursor = clamp(cursor, 0, len(emails)-1)

	cards := make([]string, len(emails))
	heights := make([]int, len(emails))
	for i, e := range emails {
		cards[i] = renderCard(e, expanded[cardKey(e, i)], i == cursor, width)
		heights[i] = lipgloss.Height(cards[i])
	}

	if height <= 0 {
		return strings.Join(cards, "\n")
	}

	start, end := cursor, cursor+1
	used := heights[cursor]
	for start > 0 && used+heights[start-1] <= height {
		start--
		used += heights[start]
	}
	for end < len(cards) && used+heights[end] <= height {
		used += heights[end]
		end++
	}

	return strings.Join(cards[start:end], "\n")
}

// cardKey identifies a card across refreshes; emails without an id fall back
// to their position.
func cardKey(e api.AnalyzedEmail, index int) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("#%d", index)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
