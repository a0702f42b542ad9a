package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/config"
	"github.com/loickal/email-insight/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeBackend struct {
	mu sync.Mutex

	exchange    *api.CallbackResponse
	exchangeErr error
	me          func(n int32) (*api.MeResponse, error)
	meCalls     atomic.Int32
	logoutErr   error
	authURL     string

	token   *oauth2.Token
	cookies []*http.Cookie
	cleared bool
}

func (f *fakeBackend) LoginURL() string { return "http://backend.test/auth/login" }

func (f *fakeBackend) StartLogin(ctx context.Context) (string, error) {
	return f.authURL, nil
}

func (f *fakeBackend) ExchangeCode(ctx context.Context, code string) (*api.CallbackResponse, error) {
	return f.exchange, f.exchangeErr
}

func (f *fakeBackend) Me(ctx context.Context) (*api.MeResponse, error) {
	n := f.meCalls.Add(1)
	if f.me == nil {
		return nil, errors.New("no /me")
	}
	return f.me(n)
}

func (f *fakeBackend) Logout(ctx context.Context) error { return f.logoutErr }

func (f *fakeBackend) SetToken(tok *oauth2.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = tok
}

func (f *fakeBackend) Token() *oauth2.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeBackend) Cookies() []*http.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies
}

func (f *fakeBackend) SetCookies(cookies []*http.Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = cookies
}

func (f *fakeBackend) ClearSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = nil
	f.cookies = nil
	f.cleared = true
}

type memStore struct {
	creds   *config.Credentials
	saves   int
	cleared bool
}

func (m *memStore) Load() (*config.Credentials, error) { return m.creds, nil }

func (m *memStore) Save(creds config.Credentials) error {
	m.creds = &creds
	m.saves++
	return nil
}

func (m *memStore) Clear() error {
	m.creds = nil
	m.cleared = true
	return nil
}

func newTestController(b Backend, store CredentialStore, opts Options) (*Controller, *session.Holder) {
	holder := session.NewHolder(b, zerolog.Nop())
	c := NewController(b, holder, store, opts, zerolog.Nop())
	c.OpenBrowser = func(string) error { return nil }
	return c, holder
}

func accessToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	b := jwt.NewBuilder().Expiration(time.Now().Add(time.Hour))
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	raw, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("k")))
	require.NoError(t, err)
	return string(raw)
}

func TestCompleteCallbackAccountFromClaims(t *testing.T) {
	raw := accessToken(t, map[string]any{"name": "Ada Lovelace", "preferred_username": "ada@example.com"})
	b := &fakeBackend{exchange: &api.CallbackResponse{AccessToken: raw}}
	store := &memStore{}
	c, holder := newTestController(b, store, Options{})

	require.NoError(t, c.CompleteCallback(context.Background(), "code-1"))

	s := holder.Snapshot()
	assert.True(t, s.Authenticated)
	require.NotNil(t, s.Account)
	assert.Equal(t, "Ada Lovelace", s.Account.Name)
	assert.Equal(t, "ada@example.com", s.Account.Username)

	require.NotNil(t, b.Token())
	assert.Equal(t, raw, b.Token().AccessToken)
	assert.False(t, b.Token().Expiry.IsZero())

	require.NotNil(t, store.creds)
	assert.Equal(t, raw, store.creds.AccessToken)
}

func TestCompleteCallbackBodyAccountWins(t *testing.T) {
	raw := accessToken(t, map[string]any{"name": "From Token"})
	b := &fakeBackend{exchange: &api.CallbackResponse{
		AccessToken: raw,
		Account:     &api.Account{Name: "From Body", Username: "body@example.com"},
	}}
	c, holder := newTestController(b, &memStore{}, Options{})

	require.NoError(t, c.CompleteCallback(context.Background(), "code"))
	assert.Equal(t, "From Body", holder.Snapshot().DisplayName())
}

func TestCompleteCallbackCookieSession(t *testing.T) {
	b := &fakeBackend{exchange: &api.CallbackResponse{Success: true}}
	b.SetCookies([]*http.Cookie{{Name: "connect.sid", Value: "s1"}})
	store := &memStore{}
	c, holder := newTestController(b, store, Options{})

	require.NoError(t, c.CompleteCallback(context.Background(), "code"))

	assert.True(t, holder.Authenticated())
	assert.Nil(t, b.Token())
	require.NotNil(t, store.creds)
	assert.Equal(t, []config.StoredCookie{{Name: "connect.sid", Value: "s1"}}, store.creds.Cookies)
}

func TestCompleteCallbackFailures(t *testing.T) {
	tests := []struct {
		name     string
		backend  *fakeBackend
		wantIs   error
		wantMsg  string
		wantUser string
	}{
		{
			name:    "no token or success",
			backend: &fakeBackend{exchange: &api.CallbackResponse{}},
			wantIs:  ErrAuthFailed,
			wantMsg: "authentication failed",
		},
		{
			name:    "backend message",
			backend: &fakeBackend{exchange: &api.CallbackResponse{Message: "Consent required"}},
			wantIs:  ErrAuthFailed,
			wantMsg: "authentication failed: Consent required",
		},
		{
			name:     "exchange rejected",
			backend:  &fakeBackend{exchangeErr: &api.APIError{Code: 400, Message: "invalid_grant"}},
			wantMsg:  "failed to exchange code for token: API error (400): invalid_grant",
			wantUser: "invalid_grant",
		},
		{
			name: "exchange failed without message",
			backend: &fakeBackend{exchangeErr: &api.APIError{
				Code: 500, Message: "Server responded with status: 500", Fallback: true,
			}},
			wantMsg:  "failed to exchange code for token: API error (500): Failed to exchange code for token.",
			wantUser: "Failed to exchange code for token.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			c, holder := newTestController(tt.backend, store, Options{})

			err := c.CompleteCallback(context.Background(), "code")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.wantMsg, err.Error())
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, api.UserMessage(err))
				assert.NotZero(t, api.StatusCode(err))
			}
			assert.False(t, holder.Authenticated())
			assert.Zero(t, store.saves)
		})
	}
}

func TestLogoutClearsEverythingOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := api.NewClient(srv.URL, config.Endpoints{Logout: "/logout"}, time.Second, zerolog.Nop())
	require.NoError(t, err)
	srv.Close()

	client.SetToken(&oauth2.Token{AccessToken: "tok"})
	store := &memStore{creds: &config.Credentials{AccessToken: "tok"}}
	c, holder := newTestController(client, store, Options{})
	holder.SetAuthenticated(&api.Account{Name: "Ada"})

	err = c.Logout(context.Background())

	assert.Error(t, err)
	assert.False(t, holder.Authenticated())
	assert.Nil(t, holder.Snapshot().Account)
	assert.Nil(t, client.Token())
	assert.True(t, store.cleared)
}

func TestLogoutSuccess(t *testing.T) {
	b := &fakeBackend{}
	store := &memStore{}
	c, holder := newTestController(b, store, Options{})
	holder.SetAuthenticated(nil)

	require.NoError(t, c.Logout(context.Background()))
	assert.True(t, b.cleared)
	assert.False(t, holder.Authenticated())
	assert.True(t, store.cleared)
}

func TestPollLoginTimesOut(t *testing.T) {
	b := &fakeBackend{
		authURL: "https://login.example.com/authorize",
		me: func(int32) (*api.MeResponse, error) {
			return &api.MeResponse{LoggedIn: false}, nil
		},
	}
	c, holder := newTestController(b, &memStore{}, Options{
		Mode:         config.LoginModePoll,
		Timeout:      150 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	})

	var opened string
	c.OpenBrowser = func(u string) error { opened = u; return nil }

	err := c.Login(context.Background())

	assert.ErrorIs(t, err, ErrLoginTimeout)
	assert.False(t, holder.Authenticated())
	assert.Equal(t, "https://login.example.com/authorize", opened)
	assert.Empty(t, c.PendingURL())
	assert.Greater(t, b.meCalls.Load(), int32(1))
}

func TestPollLoginSucceeds(t *testing.T) {
	b := &fakeBackend{
		authURL: "https://login.example.com/authorize",
		me: func(n int32) (*api.MeResponse, error) {
			if n < 3 {
				return &api.MeResponse{LoggedIn: false}, nil
			}
			return &api.MeResponse{LoggedIn: true, Account: &api.Account{Name: "Ada"}}, nil
		},
	}
	b.SetCookies([]*http.Cookie{{Name: "sid", Value: "x"}})
	store := &memStore{}
	c, holder := newTestController(b, store, Options{
		Mode:         config.LoginModePoll,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, "Ada", holder.Snapshot().DisplayName())
	assert.Equal(t, 1, store.saves)
}

func TestLoginCancelledIsNotTimeout(t *testing.T) {
	b := &fakeBackend{
		authURL: "https://login.example.com/authorize",
		me: func(int32) (*api.MeResponse, error) {
			return &api.MeResponse{LoggedIn: false}, nil
		},
	}
	c, _ := newTestController(b, &memStore{}, Options{
		Mode:         config.LoginModePoll,
		Timeout:      time.Minute,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := c.Login(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLoginTimeout)
}

func TestRestoreSeedsBackend(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	store := &memStore{creds: &config.Credentials{
		AccessToken: "saved",
		TokenType:   "Bearer",
		Expiry:      expiry,
		Cookies:     []config.StoredCookie{{Name: "sid", Value: "abc"}},
	}}
	b := &fakeBackend{}
	c, holder := newTestController(b, store, Options{})

	require.NoError(t, c.Restore())

	require.NotNil(t, b.Token())
	assert.Equal(t, "saved", b.Token().AccessToken)
	require.Len(t, b.Cookies(), 1)
	assert.Equal(t, "abc", b.Cookies()[0].Value)
	assert.False(t, holder.Authenticated(), "restored credentials still need a session check")
}

func TestRestoreNothingSaved(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newTestController(b, &memStore{}, Options{})

	require.NoError(t, c.Restore())
	assert.Nil(t, b.Token())
	assert.Nil(t, b.Cookies())
}
