package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/catalog"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/memory"
)

var day1 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return day1 }

type fixture struct {
	store      *memory.Store
	challenges *challenge.Catalog
	engine     *achievement.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cats := catalog.MustLoadEmbedded()
	return &fixture{
		store:      memory.New(),
		challenges: cats.Challenges,
		engine:     achievement.NewEngine(cats.Badges),
	}
}

// seed creates a user and applies mutate to it.
func (f *fixture) seed(t *testing.T, id string, mutate func(p *progression.Progress, w *progression.Writes)) *progression.Progress {
	t.Helper()
	ctx := context.Background()
	p, err := progression.NewProgress(progression.NewProgressParams{UserID: id, Username: "user-" + id, Now: day1})
	require.NoError(t, err)
	require.NoError(t, f.store.Create(ctx, p))
	if mutate == nil {
		return p
	}
	p, err = f.store.Update(ctx, id, func(p *progression.Progress, w *progression.Writes) error {
		mutate(p, w)
		return nil
	})
	require.NoError(t, err)
	return p
}

func withPoints(total, weekly, daily int) func(*progression.Progress, *progression.Writes) {
	return func(p *progression.Progress, _ *progression.Writes) {
		p.TotalPoints = total
		p.WeeklyPoints = weekly
		p.DailyPoints = daily
	}
}

func withCommunity(community string, total int) func(*progression.Progress, *progression.Writes) {
	return func(p *progression.Progress, _ *progression.Writes) {
		p.CommunityID = progression.NormalizeCommunityID(community)
		p.TotalPoints = total
	}
}
