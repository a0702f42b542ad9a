// Package auth drives Microsoft sign-in through the backend: starting the
// login in a browser, completing it with the returned code, and logging out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/config"
	"github.com/loickal/email-insight/internal/session"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	ErrLoginTimeout  = errors.New("timed out waiting for sign-in to complete")
	ErrLoginRejected = errors.New("sign-in was rejected")
	ErrAuthFailed    = errors.New("authentication failed")
)

// Backend is the part of the api client the auth flow needs.
type Backend interface {
	LoginURL() string
	StartLogin(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code string) (*api.CallbackResponse, error)
	Me(ctx context.Context) (*api.MeResponse, error)
	Logout(ctx context.Context) error

	SetToken(tok *oauth2.Token)
	Token() *oauth2.Token
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	ClearSession()
}

type Options struct {
	Mode         string
	CallbackAddr string
	Timeout      time.Duration
	PollInterval time.Duration
}

// OptionsFromSettings picks the login settings out of the app config.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		Mode:         s.LoginMode,
		CallbackAddr: s.CallbackAddr,
		Timeout:      s.LoginTimeout,
		PollInterval: s.PollInterval,
	}
}

type Controller struct {
	backend Backend
	session *session.Holder
	store   CredentialStore
	opts    Options
	log     zerolog.Logger

	// OpenBrowser is swapped out in tests.
	OpenBrowser func(url string) error

	mu         sync.Mutex
	pendingURL string
}

func NewController(backend Backend, holder *session.Holder, store CredentialStore, opts Options, log zerolog.Logger) *Controller {
	if store == nil {
		store = NopStore{}
	}
	if opts.Mode == "" {
		opts.Mode = config.LoginModeCallback
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Controller{
		backend:     backend,
		session:     holder,
		store:       store,
		opts:        opts,
		log:         log,
		OpenBrowser: OpenBrowser,
	}
}

// PendingURL is the address the user must visit while a login is waiting,
// shown in case the browser did not open.
func (c *Controller) PendingURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingURL
}

func (c *Controller) setPendingURL(u string) {
	c.mu.Lock()
	c.pendingURL = u
	c.mu.Unlock()
}

// Restore seeds the backend client with credentials saved by a previous run.
// The session itself is only trusted after the backend confirms it.
func (c *Controller) Restore() error {
	creds, err := c.store.Load()
	if err != nil {
		return err
	}
	if creds.Empty() {
		return nil
	}

	if creds.AccessToken != "" {
		c.backend.SetToken(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   creds.TokenType,
			Expiry:      creds.Expiry,
		})
	}
	cookies := make([]*http.Cookie, 0, len(creds.Cookies))
	for _, ck := range creds.Cookies {
		cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	c.backend.SetCookies(cookies)

	c.log.Debug().Int("cookies", len(cookies)).Bool("token", creds.AccessToken != "").Msg("restored credentials")
	return nil
}

// Login opens the backend login page in a browser and blocks until sign-in
// completes, fails, ctx is cancelled or the login timeout passes.
func (c *Controller) Login(ctx context.Context) error {
	loginCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	defer c.setPendingURL("")

	var err error
	switch c.opts.Mode {
	case config.LoginModePoll:
		err = c.loginPoll(loginCtx)
	default:
		err = c.loginCallback(loginCtx)
	}

	if err != nil {
		if ctx.Err() == nil && loginCtx.Err() != nil {
			err = ErrLoginTimeout
		}
		c.log.Warn().Err(err).Str("mode", c.opts.Mode).Msg("login failed")
		return err
	}

	c.log.Info().Str("mode", c.opts.Mode).Msg("login complete")
	return nil
}

func (c *Controller) open(url string) {
	c.setPendingURL(url)
	if err := c.OpenBrowser(url); err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}

func (c *Controller) loginCallback(ctx context.Context) error {
	ln, err := ListenCallback(c.opts.CallbackAddr, c.log)
	if err != nil {
		return err
	}
	defer ln.Close()

	c.open(c.backend.LoginURL())

	code, err := ln.Wait(ctx)
	if err != nil {
		return err
	}
	if err := c.CompleteCallback(ctx, code); err != nil {
		return err
	}

	c.recheck(ctx)
	return nil
}

func (c *Controller) loginPoll(ctx context.Context) error {
	authURL, err := c.backend.StartLogin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}
	c.open(authURL)

	limiter := rate.NewLimiter(rate.Every(c.opts.PollInterval), 1)
	// the first token is free; spend it so the first poll waits one interval
	limiter.Allow()

	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// the next tick would land after the deadline
			return ErrLoginTimeout
		}

		me, err := c.backend.Me(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("login poll")
			continue
		}
		if me.LoggedIn {
			c.session.SetAuthenticated(me.Account)
			c.saveCredentials()
			return nil
		}
	}
}

// CompleteCallback exchanges a one-time authorization code for a session.
func (c *Controller) CompleteCallback(ctx context.Context, code string) error {
	resp, err := c.backend.ExchangeCode(ctx, code)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Fallback {
			err = &api.APIError{Code: apiErr.Code, Message: "Failed to exchange code for token."}
		}
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if !resp.OK() {
		if resp.Message != "" {
			return fmt.Errorf("%w: %s", ErrAuthFailed, resp.Message)
		}
		return ErrAuthFailed
	}

	account := resp.Account
	if resp.AccessToken != "" {
		tok := &oauth2.Token{
			AccessToken: resp.AccessToken,
			TokenType:   resp.TokenType,
		}
		claimsAccount, expiry, err := api.AccountFromToken(resp.AccessToken)
		if err != nil {
			// opaque tokens are fine, they just carry no account
			c.log.Debug().Err(err).Msg("access token is not a JWT")
		} else {
			tok.Expiry = expiry
			if account == nil {
				account = claimsAccount
			}
		}
		if resp.ExpiresIn > 0 {
			tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		}
		c.backend.SetToken(tok)
	}

	c.session.SetAuthenticated(account)
	c.saveCredentials()
	return nil
}

// recheck refreshes the account from /me after a code exchange. Backends
// without /me, or with a token-only session, keep the exchange's result.
func (c *Controller) recheck(ctx context.Context) {
	me, err := c.backend.Me(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("post-login session recheck failed")
		return
	}
	if me.LoggedIn {
		c.session.SetAuthenticated(me.Account)
		c.saveCredentials()
	}
}

func (c *Controller) saveCredentials() {
	creds := config.Credentials{}
	if tok := c.backend.Token(); tok != nil {
		creds.AccessToken = tok.AccessToken
		creds.TokenType = tok.TokenType
		creds.Expiry = tok.Expiry
	}
	for _, ck := range c.backend.Cookies() {
		creds.Cookies = append(creds.Cookies, config.StoredCookie{Name: ck.Name, Value: ck.Value})
	}
	if creds.Empty() {
		return
	}
	if err := c.store.Save(creds); err != nil {
		c.log.Warn().Err(err).Msg("failed to save credentials")
	}
}

// Logout ends the backend session. The local session, token, cookies and
// saved credentials are cleared whatever the backend answers; the backend
// error is returned for reporting only.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.backend.Logout(ctx)

	c.backend.ClearSession()
	c.session.Clear()
	if clearErr := c.store.Clear(); clearErr != nil {
		c.log.Warn().Err(clearErr).Msg("failed to remove saved credentials")
	}

	if err != nil {
		c.log.Warn().Err(err).Msg("backend logout failed; local session cleared")
		return err
	}
	c.log.Info().Msg("logged out")
	return nil
}
