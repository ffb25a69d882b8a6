package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var resetPointsCmd = &cobra.Command{
	Use:       "reset-points {weekly|daily}",
	Short:     "Zero every user's weekly or daily points now",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"weekly", "daily"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.resetPoints().Handle(ctx, command.ResetPointsCommand{Period: args[0]})
		if err != nil {
			return err
		}
		a.log.Info("points reset",
			logger.String("period", string(res.Period)),
			logger.Int("users", res.Reset),
			logger.Duration("duration", res.Duration),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s points reset for %d users\n", res.Period, res.Reset)
		return nil
	},
}
