package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/memory"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/redis"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

var now = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, id string, total, weekly, daily int) {
	t.Helper()
	ctx := context.Background()
	p, err := progression.NewProgress(progression.NewProgressParams{UserID: id, Username: "user-" + id, Now: now})
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, p))
	_, err = store.Update(ctx, id, func(p *progression.Progress, _ *progression.Writes) error {
		p.TotalPoints, p.WeeklyPoints, p.DailyPoints = total, weekly, daily
		return nil
	})
	require.NoError(t, err)
}

func TestResetPointsJob(t *testing.T) {
	store := memory.New()
	seed(t, store, "u1", 500, 120, 40)
	seed(t, store, "u2", 300, 0, 10)
	handler := command.NewResetPointsHandler(store, 1, nil, logger.Nop(), func() time.Time { return now })
	ctx := context.Background()

	weekly := NewResetPointsJob(handler, progression.PeriodWeekly)
	assert.Equal(t, "reset_weekly_points", weekly.Name())
	require.NoError(t, weekly.Run(ctx))

	p, err := store.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 500, p.TotalPoints)
	assert.Zero(t, p.WeeklyPoints)
	assert.Equal(t, 40, p.DailyPoints)

	require.NoError(t, NewResetPointsJob(handler, progression.PeriodDaily).Run(ctx))
	p, err = store.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, p.DailyPoints)
	assert.Equal(t, 300, p.TotalPoints)
}

func TestRebuildLeaderboardJob(t *testing.T) {
	store := memory.New()
	seed(t, store, "u1", 100, 0, 0)
	seed(t, store, "u2", 300, 0, 0)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewCacheFromClient(client)
	board := redis.NewRealtimeBoard(cache)
	pages := redis.NewPageCache(cache)
	ctx := context.Background()

	// A stale member that the store no longer knows.
	require.NoError(t, board.Upsert(ctx, leaderboard.Standing{UserID: "gone", TotalPoints: 999}))
	require.NoError(t, pages.SetPage(ctx, "global:all-time:100", []leaderboard.Entry{{UserID: "gone"}}, time.Minute))

	job := NewRebuildLeaderboardJob(store, board, pages, logger.Nop())
	assert.Nil(t, job.LastStats())
	require.NoError(t, job.Run(ctx))

	top, err := board.Top(ctx, leaderboard.FieldTotalPoints, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, "u1", top[1].UserID)

	_, ok, err := pages.GetPage(ctx, "global:all-time:100")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NotNil(t, job.LastStats())
	assert.Equal(t, 2, job.LastStats().Users)
}
