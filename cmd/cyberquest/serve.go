package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/application/query"
	httpapi "github.com/cyberquest/cyberquest-api/internal/interface/http"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("with-scheduler", false, "Also run the scheduled jobs in this process")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(a.httpConfig(), a.httpDependencies())

	// ─────────────────────────────────────────────────────────────────────────
	// SCHEDULER (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if withScheduler, _ := cmd.Flags().GetBool("with-scheduler"); withScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				a.log.Warn("failed to stop scheduler", logger.Err(err))
			}
		}()
	}

	errCh := server.StartAsync()
	a.log.Info(a.cfg.App.Name+" is running", logger.String("http_address", a.cfg.HTTP.Addr))

	// ─────────────────────────────────────────────────────────────────────────
	// GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			a.log.Error("HTTP server error", logger.Err(err))
			return err
		}
	}

	a.log.Info("starting graceful shutdown...", logger.Duration("timeout", a.cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}
	a.log.Info("shutdown completed successfully")
	return nil
}

func (a *app) httpConfig() httpapi.Config {
	hc := httpapi.DefaultConfig()
	hc.Addr = a.cfg.HTTP.Addr
	hc.ReadTimeout = a.cfg.HTTP.ReadTimeout
	hc.WriteTimeout = a.cfg.HTTP.WriteTimeout
	hc.IdleTimeout = a.cfg.HTTP.IdleTimeout
	hc.BodyLimit = a.cfg.HTTP.BodyLimit
	return hc
}

func (a *app) httpDependencies() httpapi.Dependencies {
	clock := time.Now
	ledger := a.ledger()
	challenges := a.cats.Challenges

	return httpapi.Dependencies{
		SubmitGame:        command.NewSubmitGameHandler(ledger, challenges, a.engine, a.bus, a.log, clock),
		CompleteDaily:     command.NewCompleteDailyHandler(ledger, challenges, a.engine, a.bus, a.log, clock),
		UpdateStreak:      command.NewUpdateStreakHandler(ledger, a.bus, a.log, clock),
		CheckAchievements: command.NewCheckAchievementsHandler(ledger, a.engine, a.bus, a.log, clock),
		Users:             command.NewUserHandler(ledger, a.engine, a.bus, a.log, clock),
		ResetPoints:       a.resetPoints(),

		Profiles:     query.NewUserHandler(a.store),
		Games:        query.NewGameHandler(a.store, a.store, challenges, a.engine, clock),
		Daily:        query.NewDailyHandler(a.store, a.store, challenges, clock),
		Achievements: query.NewAchievementHandler(a.store, a.engine),
		Leaderboard:  query.NewLeaderboardHandler(a.store, a.store, a.pages, a.rt, a.leaderboardConfig(), a.log, clock),
		Analytics:    query.NewAnalyticsHandler(a.store, a.store, a.store, a.analyticsConfig(), a.log),

		Logger:        a.log,
		HealthChecker: a.health,
	}
}
