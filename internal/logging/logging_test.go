package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	log, closer, err := New(path, "debug")
	require.NoError(t, err)
	log.Debug().Str("request_id", "r1").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"r1"`)
	assert.Contains(t, string(data), `"app":"email-insight"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer, err := New(path, "chatty")
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
