package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const donePage = `<!doctype html>
<html><head><title>Email Insight</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
<h2>%s</h2><p>You can close this window and return to the terminal.</p>
<script>window.history.replaceState({}, document.title, "/");</script>
</body></html>`

type callbackResult struct {
	code string
	err  error
}

// CallbackListener is the loopback page the identity provider redirects to.
// It takes the one-time code off the URL, hands it to the waiting login and
// answers with a page that strips the code from the address bar.
type CallbackListener struct {
	srv     *http.Server
	ln      net.Listener
	results chan callbackResult
	log     zerolog.Logger
}

// ListenCallback starts the listener on addr ("127.0.0.1:0" picks a free port).
func ListenCallback(addr string, log zerolog.Logger) (*CallbackListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for login callback on %s: %w", addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	l := &CallbackListener{
		ln:      ln,
		results: make(chan callbackResult, 1),
		log:     log,
	}
	r.GET("/", l.handleCallback)
	r.GET("/callback", l.handleCallback)

	l.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("callback listener stopped")
		}
	}()

	log.Debug().Str("addr", ln.Addr().String()).Msg("callback listener started")
	return l, nil
}

// URL is the base address of the listener.
func (l *CallbackListener) URL() string {
	return "http://" + l.ln.Addr().String()
}

func (l *CallbackListener) handleCallback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		msg := c.Query("error_description")
		if msg == "" {
			msg = e
		}
		l.deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrLoginRejected, msg)})
		l.page(c, "Sign-in failed")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "missing authorization code")
		return
	}

	l.deliver(callbackResult{code: code})
	l.page(c, "Signed in")
}

func (l *CallbackListener) page(c *gin.Context, title string) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(donePage, title)))
}

// deliver keeps the first result; later redirects (reloads) are ignored.
func (l *CallbackListener) deliver(res callbackResult) {
	select {
	case l.results <- res:
	default:
		l.log.Debug().Msg("duplicate callback ignored")
	}
}

// Wait blocks until the browser delivers a code or ctx is done.
func (l *CallbackListener) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-l.results:
		return res.code, res.err
	}
}

func (l *CallbackListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
