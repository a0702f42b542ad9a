package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/auth"
	"github.com/loickal/email-insight/internal/fetch"
	"github.com/loickal/email-insight/internal/session"
	"github.com/loickal/email-insight/internal/update"
	"github.com/rs/zerolog"
)

// Deps are the controllers the UI drives. The UI owns no domain state of its
// own; it renders snapshots of these.
type Deps struct {
	Session *session.Holder
	Auth    *auth.Controller
	Fetch   *fetch.Controller
	Log     zerolog.Logger
	Version string
}

type Options struct {
	// LoginOnStart begins sign-in as soon as the session check reports
	// signed out.
	LoginOnStart bool
}

type appModel struct {
	deps Deps
	opts Options

	width  int
	height int

	spinner  spinner.Model
	viewport viewport.Model

	// Session check at mount
	checking bool

	// Login flow
	authPending bool
	authErr     string
	cancelLogin context.CancelFunc

	// Logout
	confirmLogout bool
	loggingOut    bool
	statusMsg     string

	// Auto-fetch fires once per transition to signed in.
	wasAuthenticated bool

	// Card list
	cursor   int
	expanded map[string]bool

	updateAvailable *update.Release
}

type sessionCheckedMsg struct {
	session session.Session
}

type loginDoneMsg struct {
	err error
}

type fetchDoneMsg struct {
	err error
}

type logoutDoneMsg struct {
	err error
}

type updateCheckCompleteMsg struct {
	release *update.Release
}

func NewAppModel(deps Deps, opts Options) appModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return appModel{
		deps:     deps,
		opts:     opts,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		checking: true,
		expanded: make(map[string]bool),
	}
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.checkSession(),
	}
	if m.deps.Version != "" {
		cmds = append(cmds, m.checkForUpdate())
	}
	return tea.Batch(cmds...)
}

func (m appModel) checkSession() tea.Cmd {
	return func() tea.Msg {
		return sessionCheckedMsg{session: m.deps.Session.Check(context.Background())}
	}
}

func (m appModel) checkForUpdate() tea.Cmd {
	return func() tea.Msg {
		release, isNewer, err := update.CheckForUpdate(context.Background(), m.deps.Version)
		if err != nil || !isNewer {
			return updateCheckCompleteMsg{nil}
		}
		return updateCheckCompleteMsg{release}
	}
}

func (m appModel) startLogin() (appModel, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelLogin = cancel
	m.authPending = true
	m.authErr = ""
	m.statusMsg = ""

	return m, func() tea.Msg {
		return loginDoneMsg{err: m.deps.Auth.Login(ctx)}
	}
}

func (m appModel) startFetch() tea.Cmd {
	return func() tea.Msg {
		return fetchDoneMsg{err: m.deps.Fetch.FetchAndAnalyze(context.Background())}
	}
}

func (m appModel) startLogout() tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{err: m.deps.Auth.Logout(context.Background())}
	}
}

// afterSessionChange starts the automatic fetch when the session has just
// become authenticated.
func (m appModel) afterSessionChange() (appModel, tea.Cmd) {
	authed := m.deps.Session.Authenticated()
	if authed && !m.wasAuthenticated {
		m.wasAuthenticated = true
		return m, m.startFetch()
	}
	m.wasAuthenticated = authed
	return m, nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h, v := docStyle.GetFrameSize()
		m.viewport.Width = msg.Width - h
		m.viewport.Height = max(msg.Height-v-headerLines-footerLines, 3)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionCheckedMsg:
		m.checking = false
		if !msg.session.Authenticated && m.opts.LoginOnStart {
			return m.startLogin()
		}
		return m.afterSessionChange()

	case loginDoneMsg:
		m.authPending = false
		m.cancelLogin = nil
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.authErr = loginErrorMessage(msg.err)
			}
			return m, nil
		}
		m.authErr = ""
		return m.afterSessionChange()

	case fetchDoneMsg:
		if errors.Is(msg.err, fetch.ErrSuperseded) {
			return m, nil
		}
		m.onResult()
		// a 401 clears the session
		return m.afterSessionChange()

	case logoutDoneMsg:
		m.loggingOut = false
		m.confirmLogout = false
		m.deps.Fetch.Reset()
		m.wasAuthenticated = false
		m.cursor = 0
		m.expanded = make(map[string]bool)
		if msg.err != nil {
			m.statusMsg = "Signed out locally (backend said: " + api.UserMessage(msg.err) + ")"
		} else {
			m.statusMsg = "Signed out."
		}
		return m, nil

	case updateCheckCompleteMsg:
		m.updateAvailable = msg.release
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancelLogin != nil {
				m.cancelLogin()
			}
			return m, tea.Quit
		}
		if m.confirmLogout {
			return m.updateLogoutConfirm(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// onResult resets list navigation after a new result arrives.
func (m *appModel) onResult() {
	st := m.deps.Fetch.Snapshot()
	if st.Request.Error != "" {
		return
	}
	m.cursor = clamp(m.cursor, 0, max(len(st.Result.Emails)-1, 0))
	m.viewport.SetContent(cleanText(st.Result.Text))
	m.viewport.GotoTop()
}

func (m appModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.currentView()

	switch msg.String() {
	case "q":
		if m.cancelLogin != nil {
			m.cancelLogin()
		}
		return m, tea.Quit

	case "l":
		if view == ViewLoginPrompt && !m.authPending && !m.checking {
			return m.startLogin()
		}
		return m, nil

	case "esc":
		if m.authPending && m.cancelLogin != nil {
			m.cancelLogin()
		}
		return m, nil

	case "r":
		if m.deps.Session.Authenticated() {
			m.statusMsg = ""
			return m, m.startFetch()
		}
		return m, nil

	case "o":
		if m.deps.Session.Authenticated() && !m.loggingOut {
			m.confirmLogout = true
		}
		return m, nil
	}

	switch view {
	case ViewEmails:
		return m.updateCards(msg)
	case ViewAnalysisText:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m appModel) updateCards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	emails := m.deps.Fetch.Snapshot().Result.Emails
	if len(emails) == 0 {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, len(emails)-1)
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, len(emails)-1)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(emails) - 1
	case "enter", " ":
		m.cursor = clamp(m.cursor, 0, len(emails)-1)
		key := cardKey(emails[m.cursor], m.cursor)
		m.expanded[key] = !m.expanded[key]
	case "e":
		// expand all, or collapse all when everything is open
		all := true
		for i, e := range emails {
			if !m.expanded[cardKey(e, i)] {
				all = false
				break
			}
		}
		for i, e := range emails {
			m.expanded[cardKey(e, i)] = !all
		}
	}
	return m, nil
}

func (m appModel) currentView() View {
	return SelectView(m.deps.Session.Snapshot(), m.deps.Fetch.Snapshot())
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrLoginTimeout):
		return "Sign-in timed out. Press [l] to try again."
	case errors.Is(err, auth.ErrAuthFailed), errors.Is(err, auth.ErrLoginRejected):
		return err.Error()
	}
	return api.UserMessage(err)
}

const (
	headerLines = 5
	footerLines = 2
)

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.confirmLogout {
		return m.viewLogoutConfirm()
	}

	sess := m.deps.Session.Snapshot()
	st := m.deps.Fetch.Snapshot()

	var body, help string
	switch {
	case m.checking:
		body = m.spinner.View() + " Checking your session..."
		help = "[q] Quit"
	case m.authPending:
		body = m.viewLoginPending()
		help = "[Esc] Cancel  [q] Quit"
	default:
		body, help = m.viewBody(SelectView(sess, st), sess, st)
	}

	parts := []string{m.viewHeader(sess, st), body}
	if m.statusMsg != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorWarn).Render(m.statusMsg))
	}
	parts = append(parts, helpStyle.Render(help))

	return docStyle.Render(strings.Join(parts, "\n\n"))
}

func (m appModel) viewHeader(sess session.Session, st fetch.State) string {
	lines := []string{
		titleStyle.Render("📬  Email Insight Engine"),
		introStyle.Render("Connect your Microsoft account to get AI-powered analysis of your recent emails."),
	}

	if sess.Authenticated {
		who := "Signed in"
		if name := sess.DisplayName(); name != "" {
			who = "Signed in as " + name
			if sess.Account.Username != "" && sess.Account.Username != name {
				who += " (" + sess.Account.Username + ")"
			}
		}
		if st.Fetched && !st.FetchedAt.IsZero() {
			who += "  •  last analyzed " + humanize.Time(st.FetchedAt)
		}
		lines = append(lines, accountStyle.Render(who))
	}

	if m.updateAvailable != nil {
		lines = append(lines, updateStyle.Render(
			fmt.Sprintf("✨ Update available: %s  %s", m.updateAvailable.TagName, m.updateAvailable.URL),
		))
	}
	return strings.Join(lines, "\n")
}

func (m appModel) viewLoginPending() string {
	s := m.spinner.View() + " Waiting for you to sign in with Microsoft in your browser..."
	if u := m.deps.Auth.PendingURL(); u != "" {
		s += "\n\n" + senderStyle.Render("If no browser opened, visit:\n"+u)
	}
	return s
}

func (m appModel) viewBody(view View, sess session.Session, st fetch.State) (string, string) {
	switch view {
	case ViewLoginPrompt:
		body := titleStyle.Render("🔐  Login with Microsoft") + "\n\n" +
			"Sign in to let the backend fetch and analyze your recent emails."
		if m.authErr != "" {
			body += "\n\n" + errorBannerStyle.Render("Error: "+m.authErr)
		}
		return body, "[l] Login  [q] Quit"

	case ViewLoading:
		return m.spinner.View() + " Analyzing your emails, please wait...", "[r] Restart  [q] Quit"

	case ViewError:
		return errorBannerStyle.Render("Error: " + st.Request.Error), "[r] Retry  [o] Logout  [q] Quit"

	case ViewEmpty:
		msg := "📭\n\nNo analyzed emails yet\n\nPress [r] to fetch and analyze your recent emails."
		if st.Fetched {
			msg = "📭\n\nNo emails found\n\nThe backend returned nothing to analyze. Press [r] to try again."
		}
		return emptyStateStyle.Render(msg), "[r] Fetch  [o] Logout  [q] Quit"

	case ViewEmails:
		h, v := docStyle.GetFrameSize()
		height := m.height - v - headerLines - footerLines - 4
		list := renderCardList(st.Result.Emails, m.expanded, m.cursor, m.width-h-2, height)
		summary := senderStyle.Render(fmt.Sprintf("%d emails analyzed  •  %d/%d",
			len(st.Result.Emails), clamp(m.cursor, 0, len(st.Result.Emails)-1)+1, len(st.Result.Emails)))
		return summary + "\n" + list, "[↑↓] Navigate  [Enter] Expand  [e] Expand all  [r] Re-analyze  [o] Logout  [q] Quit"

	case ViewAnalysisText:
		return titleStyle.Render("Analysis Complete") + "\n\n" + m.viewport.View(),
			"[↑↓/PgUp/PgDn] Scroll  [r] Re-analyze  [o] Logout  [q] Quit"
	}
	return "", ""
}

// RunApp runs the TUI until the user quits.
func RunApp(deps Deps, opts Options) error {
	p := tea.NewProgram(NewAppModel(deps, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}
	return nil
}
