package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/loickal/email-insight/internal/auth"
	"github.com/loickal/email-insight/internal/ui"
	"github.com/spf13/cobra"
)

var headlessLogin bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your Microsoft account",
	Long: `Sign in with your Microsoft account. A browser window opens on the
Microsoft sign-in page; the terminal waits until sign-in completes.

With --headless the login runs without the interactive UI and prints the
sign-in address instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !headlessLogin {
			return runTUI(ui.Options{LoginOnStart: true})
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a.auth.OpenBrowser = func(url string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Opening your browser to sign in. If it does not open, visit:\n  %s\n", url)
			return auth.OpenBrowser(url)
		}

		if err := a.auth.Login(ctx); err != nil {
			if ctx.Err() == context.Canceled {
				return fmt.Errorf("login cancelled")
			}
			return err
		}

		s := a.session.Snapshot()
		if name := s.DisplayName(); name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Signed in as %s\n", name)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Signed in")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&headlessLogin, "headless", false, "sign in without the interactive UI")
	rootCmd.AddCommand(loginCmd)
}
