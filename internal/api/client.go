package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loickal/email-insight/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// ErrNoLocation is returned by StartLogin when the backend did not answer
// with an identity provider URL.
var ErrNoLocation = errors.New("login endpoint returned no redirect location")

// Client talks to the email-insight backend. Every request carries the
// session cookie jar and, once known, the access token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Endpoints  config.Endpoints
	Logger     zerolog.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

type APIError struct {
	Message string
	Code    int
	// Fallback is set when the body carried no message and Message is the
	// generic status line.
	Fallback bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status of an *APIError anywhere in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func NewClient(baseURL string, endpoints config.Endpoints, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		BaseURL:   baseURL,
		Endpoints: endpoints,
		Logger:    logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

func (c *Client) SetToken(tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
}

func (c *Client) Token() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Cookies returns the session cookies the backend has set for BaseURL.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.BaseURL)
	if err != nil || c.HTTPClient.Jar == nil {
		return nil
	}
	return c.HTTPClient.Jar.Cookies(u)
}

func (c *Client) SetCookies(cookies []*http.Cookie) {
	u, err := url.Parse(c.BaseURL)
	if err != nil || c.HTTPClient.Jar == nil {
		return
	}
	c.HTTPClient.Jar.SetCookies(u, cookies)
}

// ClearSession drops the token and every cookie.
func (c *Client) ClearSession() {
	c.SetToken(nil)

	expired := c.Cookies()
	for _, ck := range expired {
		ck.MaxAge = -1
	}
	c.SetCookies(expired)
}

// LoginURL is the backend endpoint that redirects to the identity provider.
func (c *Client) LoginURL() string {
	return c.BaseURL + c.Endpoints.Login
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	if method == http.MethodPost || body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if tok := c.Token(); tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}
	return req, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	return c.do(ctx, c.HTTPClient, method, path, body)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body interface{}) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := hc.Do(req)
	log := c.Logger.Debug().
		Str("request_id", req.Header.Get("X-Request-ID")).
		Str("method", method).
		Str("path", path).
		Dur("elapsed", time.Since(start))
	if err != nil {
		log.Err(err).Msg("request failed")
		return nil, err
	}
	log.Int("status", resp.StatusCode).Msg("request done")
	return resp, nil
}

func readError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{
		Message: ErrorMessage(body, resp.Header.Get("Content-Type")),
		Code:    resp.StatusCode,
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("Server responded with status: %d", resp.StatusCode)
		apiErr.Fallback = true
	}
	return apiErr
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Me asks the backend whether the current cookie/token is a logged-in session.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.Endpoints.Me, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, readError(resp)
	}

	var me MeResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &me, nil
}

// ExchangeCode trades the one-time authorization code for a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*CallbackResponse, error) {
	path := c.Endpoints.Callback + "?code=" + url.QueryEscape(code)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, readError(resp)
	}

	var cb CallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&cb); err != nil {
		return nil, fmt.Errorf("failed to decode callback response: %w", err)
	}
	return &cb, nil
}

// StartLogin requests the login endpoint without following its redirect, so
// the backend can bind the attempt to this client's cookie. It returns the
// identity provider URL to open in a browser.
func (c *Client) StartLogin(ctx context.Context) (string, error) {
	hc := *c.HTTPClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := c.do(ctx, &hc, http.MethodGet, c.Endpoints.Login, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := resp.Location()
		if err != nil {
			return "", ErrNoLocation
		}
		return loc.String(), nil
	}
	if !ok(resp) {
		return "", readError(resp)
	}

	var body struct {
		URL     string `json:"url"`
		AuthURL string `json:"authUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", ErrNoLocation
	}
	switch {
	case body.URL != "":
		return body.URL, nil
	case body.AuthURL != "":
		return body.AuthURL, nil
	}
	return "", ErrNoLocation
}

// Logout invalidates the backend session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, c.Endpoints.Logout, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return readError(resp)
	}
	return nil
}

// FetchEmails triggers retrieval and analysis of recent emails.
func (c *Client) FetchEmails(ctx context.Context) (*AnalysisResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.Endpoints.Fetch, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, readError(resp)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &result, nil
}
