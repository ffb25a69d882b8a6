package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/messaging"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/redis"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var at = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type fakeBoard struct {
	mu      sync.Mutex
	upserts []leaderboard.Standing
	removed []string
	resets  []leaderboard.Field
	err     error
	calls   int
}

func (b *fakeBoard) Upsert(_ context.Context, s leaderboard.Standing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return b.err
	}
	b.upserts = append(b.upserts, s)
	return nil
}

func (b *fakeBoard) Remove(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.removed = append(b.removed, id)
	return b.err
}

func (b *fakeBoard) Rebuild(context.Context, []leaderboard.Standing) error { return nil }

func (b *fakeBoard) ResetField(_ context.Context, f leaderboard.Field) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.resets = append(b.resets, f)
	return b.err
}

type fakePages struct {
	invalidations int
}

func (p *fakePages) GetPage(context.Context, string) ([]leaderboard.Entry, bool, error) {
	return nil, false, nil
}
func (p *fakePages) SetPage(context.Context, string, []leaderboard.Entry, time.Duration) error {
	return nil
}
func (p *fakePages) InvalidatePages(context.Context) error {
	p.invalidations++
	return nil
}

func scoreUpdated(userID string, total int) shared.ScoreUpdatedEvent {
	return shared.ScoreUpdatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventScoreUpdated, userID, at),
		Source:       string(shared.GamePhishingDetective),
		PointsEarned: total,
		TotalPoints:  total,
		WeeklyPoints: total,
		DailyPoints:  total,
		Level:        2,
		Username:     userID,
		DisplayName:  "User " + userID,
		BadgeCount:   1,
	}
}

func TestProjectorAppliesEvents(t *testing.T) {
	board := &fakeBoard{}
	pages := &fakePages{}
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()

	p := NewLeaderboardProjector(board, pages, ProjectorConfig{}, logger.Nop())
	require.NoError(t, p.Register(bus))

	require.NoError(t, bus.Publish(scoreUpdated("u1", 350)))
	require.NoError(t, bus.Publish(shared.NewUserDeletedEvent("u2", at)))
	require.NoError(t, bus.Publish(shared.NewPointsResetEvent("daily", 4, at)))
	require.NoError(t, bus.Publish(shared.NewPointsResetEvent("weekly", 4, at)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, "Security Novice", at)))

	require.Len(t, board.upserts, 1)
	s := board.upserts[0]
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, 350, s.TotalPoints)
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 1, s.BadgeCount)
	assert.Equal(t, at, s.LastActive)
	assert.Equal(t, []string{"u2"}, board.removed)
	assert.Equal(t, []leaderboard.Field{leaderboard.FieldDailyPoints, leaderboard.FieldWeeklyPoints}, board.resets)
	assert.Equal(t, 4, pages.invalidations)
}

func TestProjectorSkipsRemoteEvents(t *testing.T) {
	board := &fakeBoard{}
	p := NewLeaderboardProjector(board, nil, ProjectorConfig{}, logger.Nop())

	err := p.Handle(messaging.RemoteEvent{Type: shared.EventScoreUpdated, Aggregate: "u1"})
	require.NoError(t, err)
	assert.Zero(t, board.calls)
}

func TestProjectorBreakerOpens(t *testing.T) {
	board := &fakeBoard{err: errors.New("connection refused")}
	pages := &fakePages{}
	p := NewLeaderboardProjector(board, pages, ProjectorConfig{}, logger.Nop())

	for range 8 {
		require.NoError(t, p.Handle(scoreUpdated("u1", 50)))
	}
	// Five failures open the circuit; later events skip Redis.
	assert.Equal(t, 5, board.calls)
	// Pages are dropped regardless so the store-backed read path stays fresh.
	assert.Equal(t, 8, pages.invalidations)
}

func TestProjectorWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewCacheFromClient(client)
	board := redis.NewRealtimeBoard(cache)
	pages := redis.NewPageCache(cache)
	ctx := context.Background()

	require.NoError(t, pages.SetPage(ctx, "global:all-time:100", []leaderboard.Entry{{Rank: 1, UserID: "stale"}}, time.Minute))

	p := NewLeaderboardProjector(board, pages, ProjectorConfig{}, logger.Nop())
	require.NoError(t, p.Handle(scoreUpdated("u1", 100)))
	require.NoError(t, p.Handle(scoreUpdated("u2", 300)))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, "u1", top[1].UserID)

	_, ok, err := pages.GetPage(ctx, "global:all-time:100")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Handle(shared.NewUserDeletedEvent("u2", at)))
	n, err := board.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func versioned(userID string, total int, version int64) shared.ScoreUpdatedEvent {
	e := scoreUpdated(userID, total)
	e.Version = version
	return e
}

func TestProjectorSkipsOlderVersions(t *testing.T) {
	board := &fakeBoard{}
	p := NewLeaderboardProjector(board, nil, ProjectorConfig{}, logger.Nop())

	require.NoError(t, p.Handle(versioned("u1", 300, 3)))
	require.NoError(t, p.Handle(versioned("u1", 200, 2)))
	require.NoError(t, p.Handle(versioned("u1", 300, 3)))
	require.NoError(t, p.Handle(versioned("u2", 50, 1)))
	require.NoError(t, p.Handle(versioned("u1", 400, 4)))

	totals := make([]int, 0, len(board.upserts))
	for _, s := range board.upserts {
		totals = append(totals, s.TotalPoints)
	}
	assert.Equal(t, []int{300, 50, 400}, totals)

	// Deletion forgets the user so a recreated account projects from version 1.
	require.NoError(t, p.Handle(shared.NewUserDeletedEvent("u1", at)))
	require.NoError(t, p.Handle(versioned("u1", 20, 1)))
	assert.Equal(t, 20, board.upserts[len(board.upserts)-1].TotalPoints)
}

func TestProjectorRetriesVersionAfterFailure(t *testing.T) {
	board := &fakeBoard{err: errors.New("connection refused")}
	p := NewLeaderboardProjector(board, nil, ProjectorConfig{}, logger.Nop())

	require.NoError(t, p.Handle(versioned("u1", 300, 3)))

	board.mu.Lock()
	board.err = nil
	board.mu.Unlock()
	require.NoError(t, p.Handle(versioned("u1", 200, 2)))

	require.Len(t, board.upserts, 1)
	assert.Equal(t, 200, board.upserts[0].TotalPoints)
}

func TestProjectorOrdersConcurrentVersions(t *testing.T) {
	board := &fakeBoard{}
	p := NewLeaderboardProjector(board, nil, ProjectorConfig{}, logger.Nop())

	var wg sync.WaitGroup
	for v := int64(1); v <= 20; v++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			_ = p.Handle(versioned("u1", int(v)*10, v))
		}(v)
	}
	wg.Wait()

	require.NotEmpty(t, board.upserts)
	last := board.upserts[len(board.upserts)-1]
	assert.Equal(t, 200, last.TotalPoints)
	for i := 1; i < len(board.upserts); i++ {
		assert.Greater(t, board.upserts[i].TotalPoints, board.upserts[i-1].TotalPoints)
	}
}
