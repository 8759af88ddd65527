package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Notification rule engine and delivery worker",
	Long: `Evaluates notification rules on a schedule, turns matching records into
queued delivery items and sends them over SMTP, Exchange or SMS.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yml")
	rootCmd.AddCommand(serveCmd, evaluateCmd, dispatchCmd, migrateCmd, tokenCmd, encryptSecretCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
