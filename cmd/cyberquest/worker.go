package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/scheduler"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/scheduler/jobs"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled jobs (points resets, leaderboard rebuilds)",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().String("run-once", "", "Run the named job once and exit")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	if name, _ := cmd.Flags().GetString("run-once"); name != "" {
		res, err := sched.RunNow(ctx, name)
		if err != nil {
			return err
		}
		a.log.Info("job finished",
			logger.String("job", res.JobName),
			logger.Bool("success", res.Success),
			logger.Duration("duration", res.Duration),
		)
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	}

	if !a.cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled (SCHEDULER_ENABLED=false)")
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, j := range sched.Jobs() {
		a.log.Info("scheduled", logger.String("job", j.Name), logger.String("schedule", j.Schedule))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	a.log.Info("received shutdown signal", logger.String("signal", sig.String()))

	if err := sched.Stop(); err != nil {
		a.log.Error("failed to stop scheduler gracefully", logger.Err(err))
		return err
	}
	a.log.Info("shutdown completed successfully")
	return nil
}

// newScheduler registers the periodic resets and, with Redis, the realtime
// board rebuild. Weekly windows reset Monday at the configured UTC time.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sc := a.cfg.Scheduler
	sched, err := scheduler.New(scheduler.Config{Logger: a.log, JobTimeout: sc.JobTimeout})
	if err != nil {
		return nil, err
	}

	hour, minute := uint(sc.ResetHour), uint(sc.ResetMinute)
	reset := a.resetPoints()
	if err := sched.Register(jobs.NewResetPointsJob(reset, progression.PeriodWeekly), scheduler.WeeklyAt(time.Monday, hour, minute)); err != nil {
		return nil, err
	}
	if err := sched.Register(jobs.NewResetPointsJob(reset, progression.PeriodDaily), scheduler.DailyAt(hour, minute)); err != nil {
		return nil, err
	}

	if a.board != nil {
		rebuild := jobs.NewRebuildLeaderboardJob(a.store, a.board, a.pages, a.log)
		if err := sched.Register(rebuild, scheduler.Every(sc.RebuildLeaderboardInterval)); err != nil {
			return nil, err
		}
	} else {
		a.log.Info("realtime board off, leaderboard rebuild not scheduled")
	}
	return sched, nil
}
