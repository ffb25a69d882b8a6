// Package main is the CyberQuest progression service. One binary serves the
// HTTP API, runs the background scheduler and carries the maintenance
// commands (migrations, manual points resets).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "cyberquest",
	Short:         "CyberQuest progression and achievement engine",
	Long:          "Scores quiz rounds, tracks levels and streaks, awards badges and ranks players.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("catalog", "", "Directory overriding the embedded challenges.json and badges.json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetPointsCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
