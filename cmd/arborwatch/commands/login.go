package commands

import (
	"log/slog"

	"arborwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verifies the configured portal credentials without scraping anything.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		client := loginClient(cmd.Context(), config)
		slog.Info("login succeeded", "portal", client.BaseUrl.String())
	},
}
