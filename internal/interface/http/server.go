// Package http exposes the progression engine as a JSON API on fiber. Callers
// are authenticated upstream; the gateway forwards the user id in X-User-ID.
package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/application/query"
	"github.com/cyberquest/cyberquest-api/internal/interface/http/handlers"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr to listen on (default: ":8080").
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context passed to application handlers.
	RequestTimeout time.Duration

	// BodyLimit is the maximum request body size in bytes.
	BodyLimit int

	EnableCORS     bool
	AllowedOrigins string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 8 * time.Second,
		BodyLimit:      1 << 20,
		EnableCORS:     true,
		AllowedOrigins: "*",
		Version:        "v1",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all handlers the routes call. Nil handlers leave
// their routes answering 501.
type Dependencies struct {
	// Commands
	SubmitGame        *command.SubmitGameHandler
	CompleteDaily     *command.CompleteDailyHandler
	UpdateStreak      *command.UpdateStreakHandler
	CheckAchievements *command.CheckAchievementsHandler
	Users             *command.UserHandler
	ResetPoints       *command.ResetPointsHandler

	// Queries
	Profiles     *query.UserHandler
	Games        *query.GameHandler
	Daily        *query.DailyHandler
	Achievements *query.AchievementHandler
	Leaderboard  *query.LeaderboardHandler
	Analytics    *query.AnalyticsHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	app    *fiber.App
	logger *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = def.BodyLimit
	}
	if config.Version == "" {
		config.Version = def.Version
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "cyberquest-api",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	s.app.Use(requestid.New())
	s.app.Use(s.requestLogger())
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			s.logger.Error("panic recovered",
				logger.Any("panic", e),
				logger.String("path", c.Path()),
				logger.String("request_id", requestID(c)),
			)
		},
	}))
	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: s.config.AllowedOrigins,
			AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Content-Type, X-Request-ID, " + handlers.HeaderUserID + ", " + handlers.HeaderUserRoles,
		}))
	}
	s.app.Use(handlers.SecurityHeaders())
}

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)
	s.app.Get("/live", s.handleLive)

	api := s.app.Group("/api/v1", handlers.Deadline(s.config.RequestTimeout))

	// ─────────────────────────────────────────────────────────────────────────
	// Public catalog and rankings
	// ─────────────────────────────────────────────────────────────────────────
	api.Get("/games/:gameType/challenges", s.handleGetChallenges)
	api.Get("/badges", s.handleGetBadges)
	api.Get("/badges/:id", s.handleGetBadge)
	api.Get("/leaderboard", s.handleGetLeaderboard)
	api.Get("/leaderboard/community/:communityId", s.handleGetCommunityLeaderboard)
	api.Get("/users/:id", s.handleGetUser)

	// ─────────────────────────────────────────────────────────────────────────
	// Caller-scoped routes
	// ─────────────────────────────────────────────────────────────────────────
	me := api.Group("/me", handlers.UserContext(), handlers.NoCache())
	me.Post("/", s.handleCreateUser)
	me.Get("/", s.handleGetMe)
	me.Patch("/", s.handleUpdateProfile)
	me.Delete("/", s.handleDeleteUser)
	me.Get("/stats", s.handleGetStats)
	me.Get("/analytics", s.handleGetAnalytics)
	me.Get("/streak/calendar", s.handleGetStreakCalendar)
	me.Post("/streak", s.handleUpdateStreak)
	me.Get("/rank", s.handleGetRank)

	me.Post("/games/:gameType/submit", s.handleSubmitGame)
	me.Get("/games/history", s.handleGetHistory)

	me.Get("/daily", s.handleGetDaily)
	me.Get("/daily/status", s.handleGetDailyStatus)
	me.Post("/daily/complete", s.handleCompleteDaily)

	me.Get("/achievements", s.handleGetAchievements)
	me.Get("/achievements/progress", s.handleGetAchievementProgress)
	me.Post("/achievements/check", s.handleCheckAchievements)

	me.Post("/community/help", s.handleCommunityHelp)

	// ─────────────────────────────────────────────────────────────────────────
	// Maintenance
	// ─────────────────────────────────────────────────────────────────────────
	admin := api.Group("/admin", handlers.UserContext(), handlers.RequireRole(handlers.RoleAdmin))
	admin.Post("/reset-points", s.handleResetPoints)
}

// requestLogger logs every request once the error handler has written the
// response, so the logged status is the one the client saw.
func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := s.handleError(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []logger.Field{
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", c.IP()),
			logger.String("request_id", requestID(c)),
		}
		if id, _ := c.Locals(handlers.LocalUserID).(string); id != "" {
			fields = append(fields, logger.UserID(id))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			s.logger.Error("http request", fields...)
		case status >= fiber.StatusBadRequest:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Debug("http request", fields...)
		}
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	if err := s.app.Listen(s.config.Addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	if err := s.app.ShutdownWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"requestId,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Count     int       `json:"count,omitempty"`
}

func (s *Server) writeJSON(c *fiber.Ctx, status int, data any) error {
	return s.writeJSONWithMeta(c, status, data, nil)
}

func (s *Server) writeJSONWithMeta(c *fiber.Ctx, status int, data any, meta *ResponseMeta) error {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = s.config.Version

	return c.Status(status).JSON(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

func (s *Server) writeJSONError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: s.config.Version},
		RequestID: requestID(c),
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
