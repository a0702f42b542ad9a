// Package session holds the client-side record of who is signed in.
package session

import (
	"context"
	"sync"

	"github.com/loickal/email-insight/internal/api"
	"github.com/rs/zerolog"
)

// Checker is the backend session-check call.
type Checker interface {
	Me(ctx context.Context) (*api.MeResponse, error)
}

// Session is a point-in-time copy of the holder's state.
type Session struct {
	Authenticated bool
	Account       *api.Account
}

// DisplayName is what the header shows for the signed-in user.
func (s Session) DisplayName() string {
	if s.Account == nil {
		return ""
	}
	if s.Account.Name != "" {
		return s.Account.Name
	}
	return s.Account.Username
}

// Holder is shared by the auth and fetch controllers and read by the UI.
type Holder struct {
	checker Checker
	log     zerolog.Logger

	mu      sync.RWMutex
	current Session
}

func NewHolder(checker Checker, log zerolog.Logger) *Holder {
	return &Holder{checker: checker, log: log}
}

// Check asks the backend whether the stored credentials are a live session.
// Any failure leaves the holder unauthenticated; there is no retry.
func (h *Holder) Check(ctx context.Context) Session {
	me, err := h.checker.Me(ctx)
	switch {
	case err != nil:
		h.log.Info().Err(err).Msg("session check failed")
		h.Clear()
	case !me.LoggedIn:
		h.log.Debug().Msg("session check: not logged in")
		h.Clear()
	default:
		h.SetAuthenticated(me.Account)
	}
	return h.Snapshot()
}

// SetAuthenticated marks the session logged in. A nil account keeps any
// account already known.
func (h *Holder) SetAuthenticated(account *api.Account) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if account != nil {
		acct := *account
		h.current.Account = &acct
	}
	h.current.Authenticated = true
}

func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = Session{}
}

func (h *Holder) Authenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Authenticated
}

func (h *Holder) Snapshot() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.current
	if s.Account != nil {
		acct := *s.Account
		s.Account = &acct
	}
	return s
}
