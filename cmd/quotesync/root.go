package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quotesync",
	Short: "quotesync - scheduled market data refresh daemon",
	Long: `quotesync periodically refreshes externally-sourced financial data
(security prices, benchmark values, currency rates) on a cron schedule,
with bounded retries over failed items and polite pacing toward remote
hosts. Runs missed while the process was down are caught up at startup.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}
