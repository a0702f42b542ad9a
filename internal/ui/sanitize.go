package ui

import (
	"html"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// cleanText strips markup from backend-provided text (summaries are model
// output and subjects are sender-controlled) while keeping line breaks.
func cleanText(s string) string {
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	s = stripControl(ansi.Strip(s))
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// cleanLine is cleanText collapsed to a single line.
func cleanLine(s string) string {
	return strings.Join(strings.Fields(cleanText(s)), " ")
}

// stripControl drops control characters left after escape sequences are
// removed, keeping newlines and tabs.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}
