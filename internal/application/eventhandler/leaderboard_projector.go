// Package eventhandler contains the reactive side of the API: handlers that
// follow committed progress and keep derived views in step.
package eventhandler

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/circuitbreaker"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEADERBOARD PROJECTOR
// Mirrors committed standings into the realtime board and drops cached pages.
// The store stays the source of truth; a failed projection is repaired by the
// next rebuild.
// ═══════════════════════════════════════════════════════════════════════════

// ProjectorConfig contains configuration for LeaderboardProjector.
type ProjectorConfig struct {
	// Timeout bounds each Redis round-trip.
	Timeout time.Duration
}

// DefaultProjectorConfig returns the default configuration.
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{Timeout: 2 * time.Second}
}

// LeaderboardProjector applies progress events to the realtime board.
type LeaderboardProjector struct {
	board   leaderboard.RealtimeBoard
	pages   leaderboard.PageCache
	breaker *circuitbreaker.CircuitBreaker
	seen    versionGate
	config  ProjectorConfig
	log     *logger.Logger
}

// versionGate remembers the newest aggregate version projected per user. The
// bus delivers events concurrently, so an older snapshot can arrive after a
// newer one; holding the user's shard across check and write keeps the board
// from going backwards.
type versionGate struct {
	shards [16]versionShard
}

type versionShard struct {
	mu   sync.Mutex
	last map[string]int64
}

func (g *versionGate) shard(userID string) *versionShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &g.shards[h.Sum32()%uint32(len(g.shards))]
}

// NewLeaderboardProjector creates a projector. board and pages may be nil.
func NewLeaderboardProjector(board leaderboard.RealtimeBoard, pages leaderboard.PageCache, config ProjectorConfig, log *logger.Logger) *LeaderboardProjector {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultProjectorConfig().Timeout
	}
	log = log.With(logger.Component("leaderboard-projector"))
	p := &LeaderboardProjector{
		board:   board,
		pages:   pages,
		breaker: circuitbreaker.RealtimeBoardBreaker(logStateChange(log)),
		config:  config,
		log:     log,
	}
	for i := range p.seen.shards {
		p.seen.shards[i].last = make(map[string]int64)
	}
	return p
}

// Register subscribes the projector to the events it handles.
func (p *LeaderboardProjector) Register(bus shared.EventSubscriber) error {
	for _, et := range []shared.EventType{shared.EventScoreUpdated, shared.EventUserDeleted, shared.EventPointsReset} {
		if err := bus.Subscribe(et, p.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle dispatches on the concrete event. Events relayed from other
// instances carry no standing and are skipped: their writer projected them.
func (p *LeaderboardProjector) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	var err error
	switch e := event.(type) {
	case shared.ScoreUpdatedEvent:
		var stale bool
		stale, err = p.upsert(ctx, e)
		if stale {
			p.log.Debug("stale score skipped",
				logger.UserID(e.AggregateID()),
				logger.Int64("version", e.Version),
			)
			return nil
		}
	case shared.UserDeletedEvent:
		sh := p.seen.shard(e.AggregateID())
		sh.mu.Lock()
		delete(sh.last, e.AggregateID())
		err = p.project(ctx, func(ctx context.Context) error { return p.board.Remove(ctx, e.AggregateID()) })
		sh.mu.Unlock()
	case shared.PointsResetEvent:
		err = p.project(ctx, func(ctx context.Context) error {
			return p.board.ResetField(ctx, leaderboard.ResetField(periodOf(e)))
		})
	default:
		return nil
	}
	if err != nil {
		p.log.Warn("projection failed",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}

	p.invalidate(ctx)
	return nil
}

// upsert writes the snapshot unless a newer version of the user was already
// projected. Unversioned snapshots always go through.
func (p *LeaderboardProjector) upsert(ctx context.Context, e shared.ScoreUpdatedEvent) (stale bool, err error) {
	userID := e.AggregateID()
	sh := p.seen.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e.Version > 0 && e.Version <= sh.last[userID] {
		return true, nil
	}
	err = p.project(ctx, func(ctx context.Context) error { return p.board.Upsert(ctx, standingOf(e)) })
	if err == nil && p.board != nil && e.Version > 0 {
		sh.last[userID] = e.Version
	}
	return false, err
}

func (p *LeaderboardProjector) project(ctx context.Context, fn func(context.Context) error) error {
	if p.board == nil {
		return nil
	}
	return p.breaker.Execute(ctx, fn)
}

func (p *LeaderboardProjector) invalidate(ctx context.Context) {
	if p.pages == nil {
		return
	}
	if err := p.pages.InvalidatePages(ctx); err != nil {
		p.log.Debug("page invalidation failed", logger.Err(err))
	}
}

func standingOf(e shared.ScoreUpdatedEvent) leaderboard.Standing {
	return leaderboard.Standing{
		UserID:       e.AggregateID(),
		Username:     e.Username,
		DisplayName:  e.DisplayName,
		CommunityID:  e.CommunityID,
		TotalPoints:  e.TotalPoints,
		WeeklyPoints: e.WeeklyPoints,
		DailyPoints:  e.DailyPoints,
		Level:        e.Level,
		BadgeCount:   e.BadgeCount,
		LastActive:   e.OccurredAt(),
	}
}
