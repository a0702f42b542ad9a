package cmd

import (
	"fmt"

	"github.com/loickal/email-insight/internal/update"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and check for updates",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "email-insight %s\n", getVersion())

		release, newer, err := update.CheckForUpdate(cmd.Context(), getVersion())
		if err != nil || !newer {
			return
		}
		fmt.Fprintf(out, "✨ Update available: %s\n   %s\n", release.TagName, release.URL)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
