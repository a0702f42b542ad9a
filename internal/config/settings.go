package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LoginModeCallback = "callback"
	LoginModePoll     = "poll"
)

// Endpoints are the backend paths. They differ between backend deployments
// (e.g. "/login" vs "/auth/login"), so every one of them is configurable.
type Endpoints struct {
	Login    string `mapstructure:"login"`
	Callback string `mapstructure:"callback"`
	Me       string `mapstructure:"me"`
	Fetch    string `mapstructure:"fetch"`
	Logout   string `mapstructure:"logout"`
}

// Settings is the resolved runtime configuration.
type Settings struct {
	BackendURL     string        `mapstructure:"backend_url"`
	LoginMode      string        `mapstructure:"login_mode"`
	CallbackAddr   string        `mapstructure:"callback_addr"`
	LoginTimeout   time.Duration `mapstructure:"login_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Remember       bool          `mapstructure:"remember"`
	LogFile        string        `mapstructure:"log_file"`
	LogLevel       string        `mapstructure:"log_level"`
	Endpoints      Endpoints     `mapstructure:"endpoints"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:5000")
	v.SetDefault("login_mode", LoginModeCallback)
	v.SetDefault("callback_addr", "127.0.0.1:3000")
	v.SetDefault("login_timeout", 5*time.Minute)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("remember", true)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("endpoints.login", "/auth/login")
	v.SetDefault("endpoints.callback", "/auth/callback")
	v.SetDefault("endpoints.me", "/me")
	v.SetDefault("endpoints.fetch", "/fetch-emails")
	v.SetDefault("endpoints.logout", "/logout")
}

// NewViper returns a viper instance with defaults, the config file search
// path and EMAIL_INSIGHT_* environment binding in place. Callers bind their
// flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("EMAIL_INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"backend":    "backend_url",
	"login-mode": "login_mode",
	"log-file":   "log_file",
	"log-level":  "log_level",
}

// BindFlags makes the known flags in fs override their config keys when set
// on the command line. Flags fs does not define are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file (a missing file is fine) and returns validated settings.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if s.LogFile == "" {
		path, err := DefaultLogPath()
		if err != nil {
			return nil, err
		}
		s.LogFile = path
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	u, err := url.Parse(s.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend_url %q", s.BackendURL)
	}
	s.BackendURL = strings.TrimRight(s.BackendURL, "/")

	switch s.LoginMode {
	case LoginModeCallback, LoginModePoll:
	default:
		return fmt.Errorf("invalid login_mode %q (want %q or %q)", s.LoginMode, LoginModeCallback, LoginModePoll)
	}

	if s.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be positive")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}
