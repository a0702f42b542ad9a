package auth

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) *CallbackListener {
	t.Helper()
	l, err := ListenCallback("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestCallbackListenerDeliversCode(t *testing.T) {
	l := listen(t)

	resp, err := http.Get(l.URL() + "/callback?code=abc123&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), "history.replaceState")
	assert.NotContains(t, string(body), "abc123")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)
}

func TestCallbackListenerFirstCodeWins(t *testing.T) {
	l := listen(t)

	for _, code := range []string{"first", "second"} {
		resp, err := http.Get(l.URL() + "/?code=" + code)
		require.NoError(t, err)
		resp.Body.Close()
	}

	code, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", code)
}

func TestCallbackListenerProviderError(t *testing.T) {
	l := listen(t)

	resp, err := http.Get(l.URL() + "/callback?error=access_denied&error_description=User+declined")
	require.NoError(t, err)
	resp.Body.Close()

	_, err = l.Wait(context.Background())
	assert.ErrorIs(t, err, ErrLoginRejected)
	assert.Contains(t, err.Error(), "User declined")
}

func TestCallbackListenerMissingCode(t *testing.T) {
	l := listen(t)

	resp, err := http.Get(l.URL() + "/callback")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
