package auth

import "github.com/loickal/email-insight/internal/config"

// CredentialStore keeps session credentials between runs.
type CredentialStore interface {
	Load() (*config.Credentials, error)
	Save(creds config.Credentials) error
	Clear() error
}

// FileStore is the age-encrypted file in the config dir.
type FileStore struct{}

func (FileStore) Load() (*config.Credentials, error)  { return config.LoadCredentials() }
func (FileStore) Save(creds config.Credentials) error { return config.SaveCredentials(creds) }
func (FileStore) Clear() error                        { return config.ClearCredentials() }

// NopStore forgets everything; used when remember is off.
type NopStore struct{}

func (NopStore) Load() (*config.Credentials, error) { return nil, nil }
func (NopStore) Save(config.Credentials) error      { return nil }

// Clear still removes a file left by an earlier run with remember on.
func (NopStore) Clear() error { return config.ClearCredentials() }
