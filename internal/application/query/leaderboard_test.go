package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

type pageCache struct {
	mu    sync.Mutex
	pages map[string][]leaderboard.Entry
	gets  int
	sets  int
}

func newPageCache() *pageCache {
	return &pageCache{pages: make(map[string][]leaderboard.Entry)}
}

func (c *pageCache) GetPage(_ context.Context, key string) ([]leaderboard.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	e, ok := c.pages[key]
	return e, ok, nil
}

func (c *pageCache) SetPage(_ context.Context, key string, entries []leaderboard.Entry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.pages[key] = entries
	return nil
}

func (c *pageCache) InvalidatePages(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[string][]leaderboard.Entry)
	return nil
}

type realtimeReader struct {
	standings []leaderboard.Standing
	err       error
	calls     int
}

func (r *realtimeReader) Top(_ context.Context, _ leaderboard.Field, limit int) ([]leaderboard.Standing, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.standings) > limit {
		return r.standings[:limit], nil
	}
	return r.standings, nil
}

func seedBoard(t *testing.T, f *fixture) {
	t.Helper()
	f.seed(t, "carol", withPoints(300, 10, 0))
	f.seed(t, "bob", withPoints(200, 50, 5))
	f.seed(t, "alice", withPoints(200, 20, 5))
	f.seed(t, "dave", withPoints(0, 0, 0))
}

func userIDs(entries []leaderboard.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestLeaderboardGlobal(t *testing.T) {
	f := newFixture(t)
	seedBoard(t, f)
	h := NewLeaderboardHandler(f.store, f.store, nil, nil, LeaderboardConfig{}, logger.Nop(), fixedClock)
	ctx := context.Background()

	res, err := h.Global(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.TimeframeAllTime, res.Timeframe)
	assert.Equal(t, day1, res.Updated)
	assert.Equal(t, []string{"carol", "alice", "bob", "dave"}, userIDs(res.Entries))
	for i, e := range res.Entries {
		assert.Equal(t, i+1, e.Rank)
	}

	res, err = h.Global(ctx, "weekly", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, userIDs(res.Entries))
	assert.Equal(t, 50, res.Entries[0].Points)

	res, err = h.Global(ctx, "daily", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, userIDs(res.Entries))

	_, err = h.Global(ctx, "monthly", 10)
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
}

func TestLeaderboardGlobalUsesPageCache(t *testing.T) {
	f := newFixture(t)
	seedBoard(t, f)
	cache := newPageCache()
	h := NewLeaderboardHandler(f.store, f.store, cache, nil, LeaderboardConfig{CacheTTL: time.Minute}, logger.Nop(), fixedClock)
	ctx := context.Background()

	first, err := h.Global(ctx, "all-time", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Contains(t, cache.pages, "global:all-time:10")

	// Later writes are not visible until the page expires or is invalidated.
	f.seed(t, "erin", withPoints(1000, 0, 0))
	second, err := h.Global(ctx, "all-time", 10)
	require.NoError(t, err)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, cache.InvalidatePages(ctx))
	third, err := h.Global(ctx, "all-time", 10)
	require.NoError(t, err)
	assert.Equal(t, "erin", third.Entries[0].UserID)
}

func TestLeaderboardGlobalRealtime(t *testing.T) {
	f := newFixture(t)
	seedBoard(t, f)
	ctx := context.Background()

	t.Run("served from projection", func(t *testing.T) {
		rt := &realtimeReader{standings: []leaderboard.Standing{
			{UserID: "zed", Username: "zed", TotalPoints: 900},
		}}
		h := NewLeaderboardHandler(f.store, f.store, nil, rt, LeaderboardConfig{UseRealtime: true}, logger.Nop(), fixedClock)

		res, err := h.Global(ctx, "", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, rt.calls)
		assert.Equal(t, []string{"zed"}, userIDs(res.Entries))
	})

	t.Run("falls back to store", func(t *testing.T) {
		rt := &realtimeReader{err: errors.New("connection refused")}
		h := NewLeaderboardHandler(f.store, f.store, nil, rt, LeaderboardConfig{UseRealtime: true}, logger.Nop(), fixedClock)

		res, err := h.Global(ctx, "", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"carol", "alice", "bob", "dave"}, userIDs(res.Entries))
	})

	t.Run("empty projection falls back", func(t *testing.T) {
		rt := &realtimeReader{}
		h := NewLeaderboardHandler(f.store, f.store, nil, rt, LeaderboardConfig{UseRealtime: true}, logger.Nop(), fixedClock)

		res, err := h.Global(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, res.Entries, 4)
	})
}

func TestLeaderboardCommunity(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", withCommunity("Red Team Berlin", 100))
	f.seed(t, "u2", withCommunity("red-team-berlin", 250))
	f.seed(t, "u3", withCommunity("blue-team", 999))
	h := NewLeaderboardHandler(f.store, f.store, nil, nil, LeaderboardConfig{}, logger.Nop(), fixedClock)
	ctx := context.Background()

	res, err := h.Community(ctx, "Red Team Berlin", 0)
	require.NoError(t, err)
	assert.Equal(t, "red-team-berlin", res.CommunityID)
	assert.Equal(t, []string{"u2", "u1"}, userIDs(res.Entries))

	_, err = h.Community(ctx, "  ", 0)
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
}

func TestLeaderboardUserRank(t *testing.T) {
	f := newFixture(t)
	seedBoard(t, f)
	h := NewLeaderboardHandler(f.store, f.store, nil, nil, LeaderboardConfig{}, logger.Nop(), fixedClock)
	ctx := context.Background()

	rank, err := h.UserRank(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 200, rank.Points)
	assert.Equal(t, 4, rank.TotalUsers)
	assert.Equal(t, 50.0, rank.Percentile)

	// Users tied on points share the rank of the first of them.
	rank, err = h.UserRank(ctx, "alice", "all-time")
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)

	rank, err = h.UserRank(ctx, "bob", "weekly")
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 75.0, rank.Percentile)

	_, err = h.UserRank(ctx, "ghost", "")
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
}
