package cmd

import (
	"fmt"

	"github.com/loickal/email-insight/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether you are signed in",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.session.Check(cmd.Context())
		out := cmd.OutOrStdout()
		if !s.Authenticated {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}

		fmt.Fprintln(out, "Logged in.")
		if s.Account != nil {
			if s.Account.Name != "" {
				fmt.Fprintf(out, "  Name:     %s\n", s.Account.Name)
			}
			if s.Account.Username != "" {
				fmt.Fprintf(out, "  Username: %s\n", s.Account.Username)
			}
		}
		fmt.Fprintf(out, "  Backend:  %s\n", a.settings.BackendURL)
		if tok := a.client.Token(); verbose && tok != nil {
			fmt.Fprintf(out, "  Token:    %s\n", config.Mask(tok.AccessToken))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
