// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/circuitbreaker"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD QUERIES
// Rankings are read from an eventually consistent view and may lag writes.
// ══════════════════════════════════════════════════════════════════════════════

// Limits for leaderboard pages.
const (
	DefaultGlobalLimit    = 100
	DefaultCommunityLimit = 50
	MaxLeaderboardLimit   = 500
)

// RealtimeReader serves the top of a ranking from the realtime projection.
type RealtimeReader interface {
	Top(ctx context.Context, f leaderboard.Field, limit int) ([]leaderboard.Standing, error)
}

// LeaderboardResult is one rendered page.
type LeaderboardResult struct {
	Timeframe   leaderboard.Timeframe `json:"timeframe,omitempty"`
	CommunityID string                `json:"communityId,omitempty"`
	Updated     time.Time             `json:"updated"`
	Entries     []leaderboard.Entry   `json:"entries"`
}

// LeaderboardConfig selects the optional read paths.
type LeaderboardConfig struct {
	// CacheTTL is how long rendered pages are kept. Zero disables the cache.
	CacheTTL time.Duration

	// UseRealtime serves the global board from the realtime projection.
	UseRealtime bool
}

// LeaderboardHandler answers ranking queries.
type LeaderboardHandler struct {
	store    leaderboard.Store
	users    progression.Repository
	cache    leaderboard.PageCache
	realtime RealtimeReader
	breaker  *circuitbreaker.CircuitBreaker
	config   LeaderboardConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewLeaderboardHandler creates a LeaderboardHandler. cache and realtime are
// optional.
func NewLeaderboardHandler(
	store leaderboard.Store,
	users progression.Repository,
	cache leaderboard.PageCache,
	realtime RealtimeReader,
	config LeaderboardConfig,
	log *logger.Logger,
	clock func() time.Time,
) *LeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("leaderboard"))
	return &LeaderboardHandler{
		store:    store,
		users:    users,
		cache:    cache,
		realtime: realtime,
		breaker:  circuitbreaker.RealtimeBoardBreaker(logStateChange(log)),
		config:   config,
		log:      log,
		now:      nowOr(clock),
	}
}

// Global ranks every user by the timeframe's points field.
func (h *LeaderboardHandler) Global(ctx context.Context, timeframe string, limit int) (*LeaderboardResult, error) {
	tf, err := leaderboard.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	limit = shared.ClampLimit(limit, DefaultGlobalLimit, MaxLeaderboardLimit)
	key := fmt.Sprintf("global:%s:%d", tf, limit)

	entries, err := h.cached(ctx, key, func(ctx context.Context) ([]leaderboard.Entry, error) {
		if h.config.UseRealtime && h.realtime != nil {
			standings, err := circuitbreaker.Call(ctx, h.breaker, []leaderboard.Standing(nil), func(ctx context.Context) ([]leaderboard.Standing, error) {
				return h.realtime.Top(ctx, tf.Field(), limit)
			})
			if err == nil && len(standings) > 0 {
				return leaderboard.Entries(standings, tf.Field(), 1), nil
			}
			if err != nil {
				h.log.Debug("realtime board unavailable, reading store", logger.Err(err))
			}
		}
		standings, err := h.store.Standings(ctx, leaderboard.Query{Field: tf.Field(), Limit: limit})
		if err != nil {
			return nil, err
		}
		return leaderboard.Entries(standings, tf.Field(), 1), nil
	})
	if err != nil {
		return nil, err
	}
	return &LeaderboardResult{Timeframe: tf, Updated: h.now(), Entries: entries}, nil
}

// Community ranks one community by total points.
func (h *LeaderboardHandler) Community(ctx context.Context, communityID string, limit int) (*LeaderboardResult, error) {
	id := progression.NormalizeCommunityID(communityID)
	if id == "" {
		return nil, shared.WrapError("leaderboard", "Community", shared.ErrInvalidArgument, "community id is required", nil)
	}
	limit = shared.ClampLimit(limit, DefaultCommunityLimit, MaxLeaderboardLimit)
	key := fmt.Sprintf("community:%s:%d", id, limit)

	entries, err := h.cached(ctx, key, func(ctx context.Context) ([]leaderboard.Entry, error) {
		standings, err := h.store.Standings(ctx, leaderboard.Query{
			Field:       leaderboard.FieldTotalPoints,
			CommunityID: id,
			Limit:       limit,
		})
		if err != nil {
			return nil, err
		}
		return leaderboard.Entries(standings, leaderboard.FieldTotalPoints, 1), nil
	})
	if err != nil {
		return nil, err
	}
	return &LeaderboardResult{CommunityID: id, Updated: h.now(), Entries: entries}, nil
}

// UserRank returns the user's rank as (users strictly above) + 1 and the
// percentile among all users.
func (h *LeaderboardHandler) UserRank(ctx context.Context, userID, timeframe string) (*leaderboard.UserRank, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	tf, err := leaderboard.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	p, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	points := leaderboard.StandingOf(p).Points(tf.Field())

	above, err := h.store.CountAbove(ctx, tf.Field(), points, "")
	if err != nil {
		return nil, err
	}
	total, err := h.store.Count(ctx, "")
	if err != nil {
		return nil, err
	}

	rank := leaderboard.NewUserRank(userID, tf, points, above, total)
	return &rank, nil
}

// cached serves key from the page cache, filling it from load on a miss.
// Cache failures only cost the shortcut.
func (h *LeaderboardHandler) cached(ctx context.Context, key string, load func(context.Context) ([]leaderboard.Entry, error)) ([]leaderboard.Entry, error) {
	useCache := h.cache != nil && h.config.CacheTTL > 0
	if useCache {
		entries, ok, err := h.cache.GetPage(ctx, key)
		switch {
		case err != nil:
			h.log.Debug("page cache read failed", logger.String("key", key), logger.Err(err))
		case ok:
			return entries, nil
		}
	}

	entries, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := h.cache.SetPage(ctx, key, entries, h.config.CacheTTL); err != nil {
			h.log.Debug("page cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return entries, nil
}
