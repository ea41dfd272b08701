package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcollins/quotesync/internal/config"
)

const defaultConfigPath = "./config.toml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect quotesync configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file and report every problem found.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := defaultConfigPath
		if len(args) > 0 {
			configPath = args[0]
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}

		if errors := cfg.Validate(); len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Configuration validation failed:\n")
			for _, e := range errors {
				fmt.Fprintf(os.Stderr, "  - %v\n", e)
			}
			os.Exit(1)
		}

		fmt.Printf("Configuration %s is valid\n", configPath)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
