package cmd

import (
	"errors"
	"os"
	"os/signal"

	"github.com/loickal/email-insight/internal/api"
	"github.com/loickal/email-insight/internal/ui"
	"github.com/spf13/cobra"
)

var plainFlag bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fetch and analyze your recent emails",
	Long: `Ask the backend to fetch and analyze your recent emails and show the
result in an interactive list of cards.

With --plain the result is printed to stdout instead, every card expanded.
A saved session is required for --plain; run 'email-insight login' first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !plainFlag {
			return runTUI(ui.Options{})
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if !a.session.Check(ctx).Authenticated {
			return errors.New("not logged in; run 'email-insight login' first")
		}

		if err := a.fetch.FetchAndAnalyze(ctx); err != nil {
			return errors.New(api.UserMessage(err))
		}
		return ui.RenderPlain(cmd.OutOrStdout(), a.fetch.Snapshot())
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&plainFlag, "plain", false, "print the analysis instead of opening the interactive UI")
	rootCmd.AddCommand(analyzeCmd)
}
