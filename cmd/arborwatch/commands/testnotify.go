package commands

import (
	"fmt"
	"log/slog"
	"time"

	"arborwatch/lib/serviceutil"
	"arborwatch/lib/timezone"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(testNotifyCmd)
}

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Sends a test message through every configured notification channel.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		channels := buildNotifier(config)
		if len(channels) == 0 {
			serviceutil.Fatal("no notification channels configured",
				fmt.Errorf("set telegram, discord or smtp in config.json5"))
		}

		text := fmt.Sprintf("Arbor watch test message at %s",
			timezone.Now().Format(time.RFC1123))
		err = channels.Send(ctx, "Arbor: test message", text)
		if err != nil {
			serviceutil.Fatal("test message failed on at least one channel", err)
		}
		slog.Info("test message delivered", "channels", len(channels))
	},
}
