package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]BadgeDefinition{
		{ID: "first_steps", Name: "First Steps", Rarity: RarityCommon, Rule: Rule{Metric: shared.CounterGamesPlayed, Threshold: 1}},
		{ID: "phishing_detective", Name: "Phishing Detective", Rarity: RarityRare, Rule: Rule{Metric: shared.CounterPhishingDetected, Threshold: 10}},
		{ID: "week_warrior", Name: "Week Warrior", Rarity: RarityEpic, Rule: Rule{Metric: MetricStreakDays, Threshold: 7}},
		{ID: "century_club", Name: "Century Club", Rarity: RarityCommon, Rule: Rule{Metric: MetricTotalPoints, Threshold: 100}},
		{ID: "level_10", Name: "Level 10", Rarity: RarityEpic, Rule: Rule{Metric: MetricLevel, Threshold: 10}},
	})
	require.NoError(t, err)
	return c
}

func progressWith(t *testing.T, mutate func(p *progression.Progress)) *progression.Progress {
	t.Helper()
	p, err := progression.NewProgress(progression.NewProgressParams{UserID: "u1", Username: "alice", Now: time.Now()})
	require.NoError(t, err)
	mutate(p)
	return p
}

func ids(defs []BadgeDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func TestUnlock_Idempotent(t *testing.T) {
	engine := NewEngine(testCatalog(t))
	p := progressWith(t, func(p *progression.Progress) {
		p.Achievements[shared.CounterGamesPlayed] = 1
		p.TotalPoints = 350
		p.Badges = []string{"century_club"}
	})
	before := append([]string(nil), p.Badges...)

	first := engine.Unlock(p)
	assert.Equal(t, []string{"first_steps"}, ids(first))
	for _, id := range ids(first) {
		assert.NotContains(t, before, id)
	}

	second := engine.Unlock(p)
	assert.Empty(t, second)
	assert.Equal(t, []string{"century_club", "first_steps"}, p.Badges)
}

func TestEvaluate_AllMetrics(t *testing.T) {
	engine := NewEngine(testCatalog(t))
	p := progressWith(t, func(p *progression.Progress) {
		p.Achievements[shared.CounterGamesPlayed] = 3
		p.Achievements[shared.CounterPhishingDetected] = 10
		p.StreakDays = 7
		p.TotalPoints = 100
		p.Level = 10
	})

	got := engine.Evaluate(p)
	assert.ElementsMatch(t, []string{"first_steps", "phishing_detective", "week_warrior", "century_club", "level_10"}, ids(got))
	assert.Empty(t, p.Badges, "Evaluate must not mutate")
}

func TestEvaluate_BelowThresholds(t *testing.T) {
	engine := NewEngine(testCatalog(t))
	p := progressWith(t, func(p *progression.Progress) {
		p.Achievements[shared.CounterPhishingDetected] = 9
		p.StreakDays = 6
		p.TotalPoints = 99
		p.Level = 9
	})
	assert.Empty(t, engine.Evaluate(p))
}

func TestSummarize(t *testing.T) {
	engine := NewEngine(testCatalog(t))
	p := progressWith(t, func(p *progression.Progress) {
		p.Badges = []string{"first_steps", "century_club", "week_warrior", "level_10", "retired_badge"}
	})

	s := engine.Summarize(p)
	assert.Equal(t, 5, s.Total)
	assert.Len(t, s.Unlocked, 4)
	assert.Equal(t, []string{"century_club", "week_warrior", "level_10"}, ids(s.RecentlyUnlocked))
	assert.Equal(t, 100.0, s.Progress)
}

func TestProgressTowards(t *testing.T) {
	engine := NewEngine(testCatalog(t))
	p := progressWith(t, func(p *progression.Progress) {
		p.Achievements[shared.CounterPhishingDetected] = 4
	})

	rows := engine.ProgressTowards(p)
	require.Len(t, rows, 5)
	assert.Equal(t, "phishing_detective", rows[1].BadgeID)
	assert.Equal(t, 4, rows[1].Current)
	assert.Equal(t, 10, rows[1].Required)
	assert.Equal(t, 40.0, rows[1].Percent)
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog([]BadgeDefinition{{ID: "x", Name: "X", Rarity: RarityCommon, Rule: Rule{Metric: "unknown", Threshold: 1}}})
	assert.Error(t, err)

	_, err = NewCatalog([]BadgeDefinition{
		{ID: "x", Name: "X", Rarity: RarityCommon, Rule: Rule{Metric: MetricLevel, Threshold: 1}},
		{ID: "x", Name: "X", Rarity: RarityCommon, Rule: Rule{Metric: MetricLevel, Threshold: 2}},
	})
	assert.Error(t, err)

	c := testCatalog(t)
	_, err = c.Get("nope")
	assert.ErrorIs(t, err, shared.ErrBadgeNotFound)
}
