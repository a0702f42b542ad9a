// Package fetch owns the fetch-and-analyze request and its loading/error state.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/session"
	"github.com/rs/zerolog"
)

var (
	ErrNotAuthenticated = errors.New("authentication required")
	// ErrSuperseded is returned to a request whose result was discarded
	// because a newer request started after it.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Backend triggers the remote fetch-and-analyze job.
type Backend interface {
	FetchEmails(ctx context.Context) (*api.AnalysisResult, error)
}

// RequestState is reset at the start of every attempt. Loading and Error are
// never both set.
type RequestState struct {
	Loading bool
	Error   string
}

type State struct {
	Request   RequestState
	Result    api.AnalysisResult
	Fetched   bool
	FetchedAt time.Time
}

type Controller struct {
	backend Backend
	session *session.Holder
	log     zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	state      State
	generation string
	cancel     context.CancelFunc
}

func NewController(backend Backend, holder *session.Holder, log zerolog.Logger) *Controller {
	return &Controller{
		backend: backend,
		session: holder,
		log:     log,
		now:     time.Now,
	}
}

// FetchAndAnalyze asks the backend to fetch and analyze recent emails and
// replaces the stored result on success. Without a session it returns
// ErrNotAuthenticated and sends nothing. Starting a new request cancels the
// one in flight; the older request's outcome is dropped with ErrSuperseded.
func (c *Controller) FetchAndAnalyze(ctx context.Context) error {
	if !c.session.Authenticated() {
		return ErrNotAuthenticated
	}

	gen, ctx := c.begin(ctx)
	result, err := c.backend.FetchEmails(ctx)
	return c.finish(gen, result, err)
}

func (c *Controller) begin(parent context.Context) (string, context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.generation = uuid.NewString()
	c.state.Request = RequestState{Loading: true}

	c.log.Debug().Str("generation", c.generation).Msg("fetch started")
	return c.generation, ctx
}

func (c *Controller) finish(gen string, result *api.AnalysisResult, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.log.Debug().Str("generation", gen).Msg("stale fetch result discarded")
		return ErrSuperseded
	}

	c.cancel()
	c.cancel = nil
	defer func() { c.state.Request.Loading = false }()

	if err != nil {
		c.state.Request.Error = api.UserMessage(err)
		if api.StatusCode(err) == http.StatusUnauthorized {
			c.session.Clear()
		}
		c.log.Warn().Err(err).Msg("fetch failed")
		return err
	}

	if result == nil {
		result = &api.AnalysisResult{}
	}
	c.state.Result = *result
	c.state.Fetched = true
	c.state.FetchedAt = c.now()
	c.log.Info().Int("emails", len(result.Emails)).Msg("fetch complete")
	return nil
}

// Reset cancels any request in flight and forgets the last result.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation = ""
	c.state = State{}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Result.Emails = append([]api.AnalyzedEmail(nil), c.state.Result.Emails...)
	return s
}
