package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

func TestAchievementQueries(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", func(p *progression.Progress, _ *progression.Writes) {
		p.Achievements[shared.CounterGamesPlayed] = 1
		p.Achievements[shared.CounterPhishingDetected] = 4
		p.UnlockBadges([]string{"first_steps"})
	})
	h := NewAchievementHandler(f.store, f.engine)
	ctx := context.Background()

	summary, err := h.UserAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summary.Unlocked, 1)
	assert.Equal(t, "first_steps", summary.Unlocked[0].ID)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 10.0, summary.Progress)

	progress, err := h.Progress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, progress, 10)
	byID := make(map[string]float64, len(progress))
	for _, bp := range progress {
		byID[bp.BadgeID] = bp.Percent
	}
	assert.Equal(t, 100.0, byID["first_steps"])
	assert.Equal(t, 40.0, byID["phishing_detective"])

	assert.Len(t, h.AllBadges(), 10)

	b, err := h.Badge("week_warrior")
	require.NoError(t, err)
	assert.Equal(t, 7, b.Rule.Threshold)

	_, err = h.Badge("nope")
	assert.Equal(t, shared.CodeBadgeNotFound, shared.CodeOf(err))

	_, err = h.UserAchievements(ctx, "ghost")
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
}
