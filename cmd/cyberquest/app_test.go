package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/config"
	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/messaging"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("catalog", "", "")
	return cmd
}

func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_DEBUG", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_DRIVER", "memory")
}

func TestBootstrap_WithoutRedis(t *testing.T) {
	quietEnv(t)
	t.Setenv("REDIS_DISABLED", "true")

	a, err := bootstrap(context.Background(), testCommand())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.cache)
	assert.Nil(t, a.board)
	assert.Nil(t, a.pages)
	assert.IsType(t, &messaging.InMemoryEventBus{}, a.bus)
	assert.True(t, a.health.Check(context.Background()).Ready)

	sched, err := a.newScheduler()
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 2)

	lc := a.leaderboardConfig()
	assert.True(t, lc.UseRealtime)
	assert.Equal(t, time.Minute, lc.CacheTTL)

	ac := a.analyticsConfig()
	assert.False(t, ac.ScanCommunity)
	assert.Equal(t, 70, ac.CommunityAverage)
}

func TestBootstrap_WithRedisFanout(t *testing.T) {
	quietEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	t.Setenv("FEATURE_EVENTS_REDIS_FANOUT", "true")
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "false")

	ctx := context.Background()
	a, err := bootstrap(ctx, testCommand())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.board)
	assert.IsType(t, &messaging.RedisEventBus{}, a.bus)
	assert.Zero(t, a.leaderboardConfig().CacheTTL)

	sched, err := a.newScheduler()
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 3)

	res, err := sched.RunNow(ctx, "rebuild_leaderboard")
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)

	reset, err := a.resetPoints().Handle(ctx, command.ResetPointsCommand{Period: "daily"})
	require.NoError(t, err)
	assert.Zero(t, reset.Reset)
}

func TestBootstrap_UnknownCatalogDirFallsBack(t *testing.T) {
	quietEnv(t)
	t.Setenv("REDIS_DISABLED", "true")

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("catalog", t.TempDir()))

	a, err := bootstrap(context.Background(), cmd)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.cats.Challenges)
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	quietEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := bootstrap(context.Background(), testCommand())
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestPrintFeatures(t *testing.T) {
	t.Setenv("FEATURE_EVENTS_REDIS_FANOUT", "25")
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "false")

	var buf bytes.Buffer
	require.NoError(t, printFeatures(&buf, config.LoadFeatureFlags()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "FEATURE")
	assert.Regexp(t, `^analytics\.community_average\s+off\s+0%`, lines[1])
	assert.Regexp(t, `^events\.redis_fanout\s+partial\s+25%`, lines[2])
	assert.Regexp(t, `^leaderboard\.cache\s+off\s+0%`, lines[3])
	assert.Regexp(t, `^leaderboard\.realtime\s+on\s+100%`, lines[4])
}
