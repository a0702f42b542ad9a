package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"filippo.io/age"
)

// getPassphrase derives a passphrase from machine-local information, so the
// credential file is only readable by the same user on the same machine.
func getPassphrase() string {
	var parts []string

	if usr, err := user.Current(); err == nil {
		parts = append(parts, usr.HomeDir, usr.Username)
	}
	if configDir, err := ConfigDir(); err == nil {
		parts = append(parts, configDir)
	}

	if len(parts) == 0 {
		hostname, _ := os.Hostname()
		parts = []string{hostname, appName}
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// Encrypt encrypts data with an age scrypt recipient.
func Encrypt(data []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(getPassphrase())
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypt writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encrypt writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt reverses Encrypt.
func Decrypt(data []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(getPassphrase())
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted data: %w", err)
	}
	return out, nil
}

// Mask masks a secret for display, keeping the last four characters.
func Mask(s string) string {
	if len(s) == 0 {
		return "(empty)"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
