package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StoredCookie is a backend session cookie kept between runs.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Credentials is what a browser would keep in its cookie store: the backend
// session cookies and, for token-based backends, the access token.
type Credentials struct {
	AccessToken string         `json:"access_token,omitempty"`
	TokenType   string         `json:"token_type,omitempty"`
	Expiry      time.Time      `json:"expiry,omitempty"`
	Cookies     []StoredCookie `json:"cookies,omitempty"`
	SavedAt     time.Time      `json:"saved_at"`
}

func (c *Credentials) Empty() bool {
	return c == nil || (c.AccessToken == "" && len(c.Cookies) == 0)
}

// SaveCredentials encrypts and writes credentials.
func SaveCredentials(creds Credentials) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}

	creds.SavedAt = time.Now()
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encrypted, 0600)
}

// LoadCredentials returns nil, nil when nothing has been saved yet.
func LoadCredentials() (*Credentials, error) {
	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plain, err := Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("credentials unreadable: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("credentials corrupt: %w", err)
	}
	return &creds, nil
}

// ClearCredentials removes the credential file. A missing file is not an error.
func ClearCredentials() error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
