package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/config"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/postgres"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long:  "Applies, rolls back or lists the embedded PostgreSQL migrations. The sqlite driver creates its schema on open.",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error {
			n, err := m.Migrate(ctx)
			if err != nil {
				return err
			}
			log.Info("migrations applied", logger.Int("count", n))
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, log *logger.Logger) error {
			if err := m.Rollback(ctx); err != nil {
				return err
			}
			log.Info("latest migration rolled back")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator, _ *logger.Logger) error {
			migrations, err := m.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, mig := range migrations {
				applied := "pending"
				if mig.IsApplied {
					applied = mig.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
			}
			return w.Flush()
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator, *logger.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Driver != config.DriverPostgres {
		fmt.Fprintf(os.Stderr, "store driver is %q, nothing to migrate\n", cfg.Store.Driver)
		return nil
	}
	log := setupLogger(cfg)

	a := &app{cfg: cfg, log: log}
	defer a.Close()
	conn, err := a.connectPostgres(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, postgres.NewMigrator(conn), log)
}
