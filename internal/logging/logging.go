// Package logging sets up the zerolog logger. The TUI owns stdout and stderr
// while it runs, so logs go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New opens (or creates) path for appending and returns a logger writing to it.
// The returned closer must be closed on exit.
func New(path, level string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWithWriter(f, lvl), f, nil
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "email-insight").
		Logger()
}

// Console is used by the non-interactive commands.
func Console(verbose bool) zerolog.Logger {
	lvl := zerolog.WarnLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, lvl)
}
