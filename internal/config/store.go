package config

import (
	"os"
	"path/filepath"
)

const appName = "email-insight"

// homeEnv overrides the config directory. Used by tests and portable installs.
const homeEnv = "EMAIL_INSIGHT_HOME"

func ConfigDir() (string, error) {
	path := os.Getenv(homeEnv)
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, appName)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0700); err != nil {
			return "", err
		}
	}
	return path, nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CredentialsPath is where the encrypted session credentials live.
func CredentialsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.age"), nil
}

func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".log"), nil
}
