package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playwarden",
	Short: "Playwarden - gaming time budget agent",
	Long: `Playwarden polls the game monitor service for running sessions and
today's time budget, escalates threshold alerts, and serves the family
dashboard API and WebSocket feed.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to agent command when no subcommand is provided
		return runAgent(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/playwarden/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
