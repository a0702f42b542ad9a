package cmd

import (
	"fmt"

	"github.com/loickal/email-insight/internal/api"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if err := a.auth.Logout(cmd.Context()); err != nil {
			// the local session is gone either way
			fmt.Fprintf(out, "Signed out locally. The backend reported: %s\n", api.UserMessage(err))
			return nil
		}
		fmt.Fprintln(out, "Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
