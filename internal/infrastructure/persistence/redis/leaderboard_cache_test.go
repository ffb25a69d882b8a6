package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client), mr
}

func standing(id string, total, weekly, daily int) leaderboard.Standing {
	return leaderboard.Standing{
		UserID:       id,
		Username:     id,
		DisplayName:  "User " + id,
		TotalPoints:  total,
		WeeklyPoints: weekly,
		DailyPoints:  daily,
		Level:        1,
	}
}

func ids(standings []leaderboard.Standing) []string {
	out := make([]string, len(standings))
	for i, s := range standings {
		out[i] = s.UserID
	}
	return out
}

func TestPageCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	pages := NewPageCache(cache)

	_, ok, err := pages.GetPage(ctx, "all-time:10")
	require.NoError(t, err)
	assert.False(t, ok)

	entries := leaderboard.Rank([]leaderboard.Standing{standing("a", 100, 0, 0)}, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, pages.SetPage(ctx, "all-time:10", entries, time.Minute))

	got, ok, err := pages.GetPage(ctx, "all-time:10")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UserID)
	assert.Equal(t, 1, got[0].Rank)

	mr.FastForward(2 * time.Minute)
	_, ok, err = pages.GetPage(ctx, "all-time:10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPageCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	pages := NewPageCache(cache)

	require.NoError(t, pages.SetPage(ctx, "weekly:10", []leaderboard.Entry{}, time.Minute))
	require.NoError(t, pages.SetPage(ctx, "daily:5", nil, time.Minute))
	require.NoError(t, cache.Set(ctx, "other", 1, time.Minute))

	require.NoError(t, pages.InvalidatePages(ctx))

	_, ok, err := pages.GetPage(ctx, "weekly:10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("other"))
}

func TestRealtimeBoard_OrdersByPointsThenUserID(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	require.NoError(t, board.Upsert(ctx, standing("u-c", 80, 30, 0)))
	require.NoError(t, board.Upsert(ctx, standing("u-b", 100, 10, 5)))
	require.NoError(t, board.Upsert(ctx, standing("u-a", 100, 20, 5)))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-a", "u-b", "u-c"}, ids(top))
	assert.Equal(t, 100, top[0].TotalPoints)

	weekly, err := board.Top(ctx, leaderboard.FieldWeeklyPoints, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-c", "u-a"}, ids(weekly))
}

func TestRealtimeBoard_UpsertReplacesScore(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	require.NoError(t, board.Upsert(ctx, standing("u-a", 10, 10, 10)))
	require.NoError(t, board.Upsert(ctx, standing("u-b", 20, 20, 20)))
	require.NoError(t, board.Upsert(ctx, standing("u-a", 30, 30, 30)))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-a", "u-b"}, ids(top))

	n, err := board.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRealtimeBoard_Remove(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	require.NoError(t, board.Upsert(ctx, standing("u-a", 10, 0, 0)))
	require.NoError(t, board.Upsert(ctx, standing("u-b", 20, 0, 0)))
	require.NoError(t, board.Remove(ctx, "u-b"))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-a"}, ids(top))
}

func TestRealtimeBoard_Rebuild(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	require.NoError(t, board.Upsert(ctx, standing("stale", 999, 0, 0)))
	require.NoError(t, board.Rebuild(ctx, []leaderboard.Standing{
		standing("u-a", 50, 5, 0),
		standing("u-b", 70, 1, 0),
	}))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-b", "u-a"}, ids(top))

	require.NoError(t, board.Rebuild(ctx, nil))
	n, err := board.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRealtimeBoard_ResetField(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	require.NoError(t, board.Upsert(ctx, standing("u-a", 100, 40, 0)))
	require.NoError(t, board.Upsert(ctx, standing("u-b", 50, 90, 0)))
	require.NoError(t, board.ResetField(ctx, leaderboard.FieldWeeklyPoints))

	weekly, err := board.Top(ctx, leaderboard.FieldWeeklyPoints, 10)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, []string{"u-a", "u-b"}, ids(weekly))
	assert.Zero(t, weekly[0].WeeklyPoints)
	assert.Zero(t, weekly[1].WeeklyPoints)

	total, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, total[0].TotalPoints)
}

func TestRealtimeBoard_PublishesUpdates(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	board := NewRealtimeBoard(cache)

	sub := cache.Client().Subscribe(ctx, ChannelLeaderboardUpdates)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, board.Upsert(ctx, standing("u-a", 10, 0, 0)))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"userId":"u-a"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}
}

func TestRealtimeBoard_RejectsEmptyUserID(t *testing.T) {
	cache, _ := newTestCache(t)
	err := NewRealtimeBoard(cache).Upsert(context.Background(), standing("", 1, 1, 1))
	assert.Error(t, err)
}
