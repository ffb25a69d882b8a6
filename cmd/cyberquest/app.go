package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberquest/cyberquest-api/config"
	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/application/eventhandler"
	"github.com/cyberquest/cyberquest-api/internal/application/query"
	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/catalog"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/messaging"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/memory"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/postgres"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/redis"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/sqlite"
	"github.com/cyberquest/cyberquest-api/internal/interface/http/handlers"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// progressStore is what every store driver provides.
type progressStore interface {
	progression.Repository
	progression.HistoryRepository
	leaderboard.Store
}

type eventBus interface {
	shared.EventBus
	Close() error
}

// app holds the wiring shared by every command.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  progressStore
	cats   *catalog.Catalogs
	engine *achievement.Engine
	bus    eventBus
	health *handlers.CompositeHealthChecker

	// Nil when Redis is disabled or unreachable.
	cache *redis.Cache
	board leaderboard.RealtimeBoard
	pages leaderboard.PageCache
	rt    query.RealtimeReader

	closers []func()
}

// ══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ══════════════════════════════════════════════════════════════════════════════

// bootstrap loads configuration and connects everything a command needs.
// The caller must Close the returned app.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*app, error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)
	log.Info("starting "+cfg.App.Name,
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("store", cfg.Store.Driver),
	)

	a := &app{
		cfg:    cfg,
		log:    log,
		health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. CATALOGS
	// ─────────────────────────────────────────────────────────────────────────
	dir, _ := cmd.Flags().GetString("catalog")
	if a.cats, err = catalog.Load(dir); err != nil {
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}
	a.engine = achievement.NewEngine(a.cats.Badges)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PROGRESS STORE
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	a.connectRedis()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS & PROJECTIONS
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.startEventBus(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Level:     level,
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddSource: cfg.App.Debug,
	})
}

func (a *app) openStore(ctx context.Context) error {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.DriverPostgres:
		conn, err := a.connectPostgres(ctx)
		if err != nil {
			return err
		}
		if sc.AutoMigrate {
			n, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			a.log.Info("database schema is up to date", logger.Int("applied", n))
		}
		a.store = postgres.NewStore(conn)
		a.health.AddCheck("store", handlers.NewPingCheck(conn))

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		a.onClose(func() {
			if err := st.Close(); err != nil {
				a.log.Warn("failed to close database", logger.Err(err))
			}
		})
		a.store = st
		a.health.AddCheck("store", handlers.NewPingCheck(st))

	case config.DriverMemory:
		a.log.Warn("using in-memory store, progress is lost on exit")
		a.store = memory.New()

	default:
		return fmt.Errorf("unknown store driver %q", sc.Driver)
	}
	return nil
}

func (a *app) connectPostgres(ctx context.Context) (*postgres.Connection, error) {
	sc := a.cfg.Store
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = sc.DatabaseURL
	pgCfg.MaxConns = int32(sc.MaxConns)
	pgCfg.MinConns = int32(sc.MinConns)
	pgCfg.MaxConnLifetime = sc.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = sc.ConnMaxIdleTime

	a.log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onClose(func() {
		a.log.Info("closing database connection...")
		conn.Close()
	})
	a.log.Info("database connection established")
	return conn, nil
}

// connectRedis never fails: without Redis the API reads the store directly.
func (a *app) connectRedis() {
	if !a.cfg.RedisEnabled() {
		a.log.Info("Redis disabled, realtime board and page cache off")
		return
	}
	rc := a.cfg.Redis
	cache, err := redis.NewCache(redis.Config{
		Host:         rc.Host,
		Port:         rc.Port,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		PoolTimeout:  rc.PoolTimeout,
	})
	if err != nil {
		a.log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return
	}
	a.onClose(func() { _ = cache.Close() })

	board := redis.NewRealtimeBoard(cache)
	a.cache = cache
	a.board = board
	a.rt = board
	a.pages = redis.NewPageCache(cache)
	a.health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
	a.log.Info("Redis connection established")
}

func (a *app) startEventBus(ctx context.Context) error {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = a.log

	if a.cache != nil && a.cfg.Features.IsEnabled(config.FeatureEventFanout, nil) {
		bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:         a.cache.Client(),
			LocalBusConfig: busCfg,
			Logger:         a.log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event fan-out: %w", err)
		}
		a.bus = bus
	} else {
		a.bus = messaging.NewInMemoryEventBus(busCfg)
	}
	a.onClose(func() {
		a.log.Info("closing event bus...")
		_ = a.bus.Close()
	})

	if err := eventhandler.NewActivityLogger(a.log).Register(a.bus); err != nil {
		return fmt.Errorf("failed to register activity logger: %w", err)
	}
	if a.board != nil {
		projector := eventhandler.NewLeaderboardProjector(a.board, a.pages, eventhandler.DefaultProjectorConfig(), a.log)
		if err := projector.Register(a.bus); err != nil {
			return fmt.Errorf("failed to register leaderboard projector: %w", err)
		}
	}
	return nil
}

// onClose registers cleanup run by Close in reverse order.
func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases everything in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) ledger() *command.Ledger {
	return command.NewLedger(a.store, command.LedgerConfig{
		MaxAttempts:  a.cfg.Progression.LedgerMaxAttempts,
		StoreTimeout: a.cfg.Store.Timeout,
	}, a.log)
}

func (a *app) resetPoints() *command.ResetPointsHandler {
	return command.NewResetPointsHandler(a.store, a.cfg.Progression.ResetBatchSize, a.bus, a.log, time.Now)
}

func (a *app) leaderboardConfig() query.LeaderboardConfig {
	lc := query.LeaderboardConfig{
		UseRealtime: a.cfg.Features.IsEnabled(config.FeatureLeaderboardRealtime, nil),
	}
	if a.cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
		lc.CacheTTL = a.cfg.Progression.LeaderboardCacheTTL
	}
	return lc
}

func (a *app) analyticsConfig() query.AnalyticsConfig {
	return query.AnalyticsConfig{
		CommunityAverage: int(a.cfg.Progression.CommunityAverageFallback),
		ScanCommunity:    a.cfg.Features.IsEnabled(config.FeatureCommunityAverage, nil),
	}
}
