package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcollins/quotesync/internal/refresh"
)

var runConfigPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one refresh run and exit",
	Long: `Execute a single manual refresh run in the foreground, including
the bounded retry loop, then print the outcome as JSON. Exits non-zero when
the run fails wholesale.`,
	Run: runHandler,
}

func runHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig(runConfigPath)

	c := assemble(cfg, prometheus.NewRegistry())

	c.orch.Execute(context.Background(), refresh.TriggerManual)

	outcome := c.orch.LastOutcome()
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode outcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))

	if outcome.Failed() {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (default ./config.toml)")
}
