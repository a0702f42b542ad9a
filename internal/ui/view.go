package ui

import (
	"github.com/loickal/email-insight/internal/fetch"
	"github.com/loickal/email-insight/internal/session"
)

// View is the top-level screen chosen from session and fetch state.
type View int

const (
	ViewLoginPrompt View = iota
	ViewLoading
	ViewError
	ViewEmpty
	ViewEmails
	ViewAnalysisText
)

func (v View) String() string {
	switch v {
	case ViewLoginPrompt:
		return "login"
	case ViewLoading:
		return "loading"
	case ViewError:
		return "error"
	case ViewEmpty:
		return "empty"
	case ViewEmails:
		return "emails"
	case ViewAnalysisText:
		return "analysis"
	}
	return "unknown"
}

// SelectView maps state to a screen in priority order: signed out, loading,
// error, nothing to show, then the results.
func SelectView(s session.Session, st fetch.State) View {
	switch {
	case !s.Authenticated:
		return ViewLoginPrompt
	case st.Request.Loading:
		return ViewLoading
	case st.Request.Error != "":
		return ViewError
	case st.Result.Empty():
		return ViewEmpty
	case len(st.Result.Emails) > 0:
		return ViewEmails
	}
	return ViewAnalysisText
}
