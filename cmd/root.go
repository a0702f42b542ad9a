package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/auth"
	"github.com/loickal/email-insight/internal/config"
	"github.com/loickal/email-insight/internal/fetch"
	"github.com/loickal/email-insight/internal/logging"
	"github.com/loickal/email-insight/internal/session"
	"github.com/loickal/email-insight/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgFile    string
	verbose    bool
	noRemember bool
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "email-insight",
	Short: "AI-powered insight into your recent emails, in the terminal",
	Long: `Sign in with your Microsoft account and let the Email Insight backend
fetch and analyze your recent emails. Summaries, sentiment and action items
are shown in an interactive terminal UI.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(ui.Options{})
	},
}

func SetVersion(ver string) {
	version = ver
}

func getVersion() string {
	return version
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: <config dir>/email-insight/config.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output for non-interactive commands")
	flags.String("backend", "", "backend base URL (default: http://localhost:5000)")
	flags.String("login-mode", "", `login mode: "callback" or "poll"`)
	flags.String("log-file", "", "log file path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&noRemember, "no-remember", false, "do not save the session on this machine")

	cobra.CheckErr(config.BindFlags(v, flags))
}

// app is the wired set of controllers shared by every command.
type app struct {
	settings *config.Settings
	log      zerolog.Logger
	closer   io.Closer

	client  *api.Client
	session *session.Holder
	auth    *auth.Controller
	fetch   *fetch.Controller
}

// newApp loads settings and wires the controllers. Interactive commands log
// to the log file, the others to stderr.
func newApp(interactive bool) (*app, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if noRemember {
		settings.Remember = false
	}

	a := &app{settings: settings}
	if interactive {
		a.log, a.closer, err = logging.New(settings.LogFile, settings.LogLevel)
		if err != nil {
			return nil, err
		}
	} else {
		a.log = logging.Console(verbose)
	}

	a.client, err = api.NewClient(settings.BackendURL, settings.Endpoints, settings.RequestTimeout,
		a.log.With().Str("component", "api").Logger())
	if err != nil {
		a.Close()
		return nil, err
	}

	var store auth.CredentialStore = auth.FileStore{}
	if !settings.Remember {
		store = auth.NopStore{}
	}

	a.session = session.NewHolder(a.client, a.log.With().Str("component", "session").Logger())
	a.auth = auth.NewController(a.client, a.session, store, auth.OptionsFromSettings(settings),
		a.log.With().Str("component", "auth").Logger())
	a.fetch = fetch.NewController(a.client, a.session, a.log.With().Str("component", "fetch").Logger())

	if err := a.auth.Restore(); err != nil {
		// a corrupt or foreign credential file just means signing in again
		a.log.Warn().Err(err).Msg("could not restore saved session")
	}

	a.log.Debug().
		Str("backend", settings.BackendURL).
		Str("login_mode", settings.LoginMode).
		Bool("remember", settings.Remember).
		Msg("starting")
	return a, nil
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func runTUI(opts ui.Options) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	return ui.RunApp(ui.Deps{
		Session: a.session,
		Auth:    a.auth,
		Fetch:   a.fetch,
		Log:     a.log,
		Version: getVersion(),
	}, opts)
}
