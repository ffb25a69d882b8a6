package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
	"github.com/cyberquest/cyberquest-api/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Replaces the realtime projection with the store's standings. Repairs
// projection writes lost while Redis was unreachable.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Users     int           `json:"users"`
}

// RebuildLeaderboardJob copies standings into the realtime board.
type RebuildLeaderboardJob struct {
	store leaderboard.Store
	board leaderboard.RealtimeBoard
	pages leaderboard.PageCache
	log   *logger.Logger

	retrier *retry.Retrier
	last    atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates the job. pages may be nil.
func NewRebuildLeaderboardJob(store leaderboard.Store, board leaderboard.RealtimeBoard, pages leaderboard.PageCache, log *logger.Logger) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildLeaderboardJob{
		store:   store,
		board:   board,
		pages:   pages,
		log:     log.With(logger.Component("rebuild_leaderboard")),
		retrier: retry.DatabaseRetrier(),
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the realtime leaderboard from the store"
}

// Run executes the rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	start := time.Now()

	var standings []leaderboard.Standing
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		standings, err = j.store.Standings(ctx, leaderboard.Query{Field: leaderboard.FieldTotalPoints})
		return retry.Retryable(err)
	})
	if err != nil {
		return fmt.Errorf("load standings: %w", err)
	}

	if err := j.board.Rebuild(ctx, standings); err != nil {
		return fmt.Errorf("rebuild board: %w", err)
	}
	if j.pages != nil {
		if err := j.pages.InvalidatePages(ctx); err != nil {
			j.log.Warn("page invalidation failed", logger.Err(err))
		}
	}

	stats := &RebuildStats{StartedAt: start.UTC(), Duration: time.Since(start), Users: len(standings)}
	j.last.Store(stats)
	j.log.Info("leaderboard rebuilt", logger.Int("users", stats.Users), logger.Latency(stats.Duration))
	return nil
}

// LastStats returns the statistics of the latest successful run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}
