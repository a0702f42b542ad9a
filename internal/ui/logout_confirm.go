package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) updateLogoutConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loggingOut {
		// wait for the backend to answer
		return m, nil
	}

	switch msg.String() {
	case "y", "Y", "enter":
		m.loggingOut = true
		return m, m.startLogout()
	case "n", "N", "esc":
		m.confirmLogout = false
		return m, nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m appModel) viewLogoutConfirm() string {
	var content strings.Builder

	content.WriteString(titleStyle.Render("⚠️  Logout Confirmation"))
	content.WriteString("\n\n")

	if name := m.deps.Session.Snapshot().DisplayName(); name != "" {
		content.WriteString("Signed in as " + accountStyle.Render(name) + ".")
		content.WriteString("\n")
	}

	if m.loggingOut {
		content.WriteString("\n")
		content.WriteString(m.spinner.View() + " Signing out...")
		return docStyle.Render(content.String())
	}

	content.WriteString("Sign out and forget the saved session on this machine?")
	content.WriteString("\n")
	content.WriteString(helpStyle.Render("[y] Yes, logout  [n/Esc] Cancel"))

	return docStyle.Render(content.String())
}
