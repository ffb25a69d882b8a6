package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cyberquest-api", cfg.App.Name)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Progression.LedgerMaxAttempts)
	assert.Equal(t, 70.0, cfg.Progression.CommunityAverageFallback)
	assert.Equal(t, 500, cfg.Progression.ResetBatchSize)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.RedisEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/cq.db")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("COMMUNITY_AVERAGE_FALLBACK", "62.5")
	t.Setenv("SCHEDULER_RESET_HOUR", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/cq.db", cfg.Store.SQLitePath)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, 62.5, cfg.Progression.CommunityAverageFallback)
	assert.Equal(t, 3, cfg.Scheduler.ResetHour)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("LEDGER_MAX_ATTEMPTS", "lots")
	t.Setenv("STORE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Progression.LedgerMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "0")
	t.Setenv("SCHEDULER_RESET_MINUTE", "75")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "LEDGER_MAX_ATTEMPTS")
	assert.Contains(t, msg, "SCHEDULER_RESET_MINUTE")
	assert.Contains(t, msg, "LOG_FORMAT")
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestValidate_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `got "mongo"`)
}

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureLeaderboardRealtime, nil))
	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
	assert.False(t, ff.IsEnabled(FeatureCommunityAverage, nil))
	assert.False(t, ff.IsEnabled(FeatureEventFanout, nil))
	assert.False(t, ff.IsEnabled("unknown.flag", nil))
	assert.Len(t, ff.GetAllFeatures(), 4)
}

func TestFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_LEADERBOARD_REALTIME", "false")
	t.Setenv("FEATURE_ANALYTICS_COMMUNITY_AVERAGE", "true")
	t.Setenv("FEATURE_EVENTS_REDIS_FANOUT", "40")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureLeaderboardRealtime, nil))
	assert.True(t, ff.IsEnabled(FeatureCommunityAverage, nil))
	// partial rollout is never on for the process as a whole
	assert.False(t, ff.IsEnabled(FeatureEventFanout, nil))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	t.Setenv("FEATURE_ANALYTICS_COMMUNITY_AVERAGE", "50")
	ff := LoadFeatureFlags()

	enabled := 0
	for i := range 200 {
		ctx := &FeatureContext{UserID: "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))}
		first := ff.IsEnabled(FeatureCommunityAverage, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureCommunityAverage, ctx))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)
}

func TestFeatureFlags_AdminsSkipRollout(t *testing.T) {
	t.Setenv("FEATURE_EVENTS_REDIS_FANOUT", "1")
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "0")
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureEventFanout, &FeatureContext{UserID: "root", IsAdmin: true}))
	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, &FeatureContext{UserID: "root", IsAdmin: true}))

	features := ff.GetAllFeatures()
	require.Len(t, features, 4)
	assert.Equal(t, FeatureCommunityAverage, features[0].Name)
	assert.Equal(t, FeatureEventFanout, features[1].Name)
	assert.Equal(t, 1, features[1].RolloutPercent)
	assert.False(t, features[2].Enabled)
}
