package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/config"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List feature flags as resolved from the environment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return printFeatures(cmd.OutOrStdout(), cfg.Features)
	},
}

func printFeatures(out io.Writer, ff *config.FeatureFlags) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tSTATE\tROLLOUT\tDESCRIPTION")
	for _, f := range ff.GetAllFeatures() {
		state := "off"
		switch {
		case f.Enabled && f.RolloutPercent >= 100:
			state = "on"
		case f.Enabled:
			state = "partial"
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", f.Name, state, f.RolloutPercent, f.Description)
	}
	return w.Flush()
}
