package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

func TestUpdateStreak_Rule(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", "alice")
	h := NewUpdateStreakHandler(f.ledger, f.events, logger.Nop(), f.clock.Now)
	ctx := context.Background()

	tests := []struct {
		name    string
		now     time.Time
		streak  int
		reset   bool
		changed bool
	}{
		{"same day", day1.Add(2 * time.Hour), 0, false, false},
		{"next day", day1.Add(24 * time.Hour), 1, false, true},
		{"following day", day1.Add(48 * time.Hour), 2, false, true},
		{"same day again", day1.Add(50 * time.Hour), 2, false, false},
		{"clock skew", day1.Add(-72 * time.Hour), 2, false, false},
		{"gap", day1.Add(5 * 24 * time.Hour), 1, true, true},
	}
	for _, tt := range tests {
		res, err := h.Handle(ctx, UpdateStreakCommand{UserID: "u1", Now: tt.now})
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.streak, res.StreakDays, tt.name)
		assert.Equal(t, tt.reset, res.WasReset, tt.name)
		assert.Equal(t, tt.changed, res.Changed, tt.name)
	}
}

func TestUpdateStreak_UnknownUser(t *testing.T) {
	f := newFixture(t)
	h := NewUpdateStreakHandler(f.ledger, nil, nil, f.clock.Now)
	_, err := h.Handle(context.Background(), UpdateStreakCommand{UserID: "ghost"})
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
}

func TestCheckAchievements_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", "alice")
	_, err := f.ledger.Mutate(context.Background(), "u1", "Seed", func(p *progression.Progress, _ *progression.Writes) error {
		p.Achievements[shared.CounterGamesPlayed] = 1
		p.Achievements[shared.CounterCommunityHelps] = 5
		p.StreakDays = 7
		return nil
	})
	require.NoError(t, err)

	h := NewCheckAchievementsHandler(f.ledger, f.engine, f.events, logger.Nop(), f.clock.Now)

	first, err := h.Handle(context.Background(), CheckAchievementsCommand{UserID: "u1"})
	require.NoError(t, err)
	ids := make([]string, len(first))
	for i, b := range first {
		ids[i] = b.ID
	}
	assert.ElementsMatch(t, []string{"first_steps", "helping_hand", "week_warrior"}, ids)
	for _, b := range first {
		assert.NotEmpty(t, b.Name)
	}

	version := f.get(t, "u1").Version
	second, err := h.Handle(context.Background(), CheckAchievementsCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, version, f.get(t, "u1").Version)
}

func TestCheckAchievements_UnknownUser(t *testing.T) {
	f := newFixture(t)
	h := NewCheckAchievementsHandler(f.ledger, f.engine, nil, nil, nil)
	_, err := h.Handle(context.Background(), CheckAchievementsCommand{UserID: "ghost"})
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
}

func TestResetPoints(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.createUser(t, id, "user-"+id)
	}
	for _, id := range []string{"u1", "u2"} {
		_, _, err := f.ledger.ApplySubmission(context.Background(), id, progression.SubmissionDelta{
			GameType:     shared.GamePhishingDetective,
			PointsEarned: 50,
		}, day1)
		require.NoError(t, err)
	}

	h := NewResetPointsHandler(f.store, 1, f.events, logger.Nop(), f.clock.Now)

	res, err := h.Handle(context.Background(), ResetPointsCommand{Period: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reset)

	p := f.get(t, "u1")
	assert.Zero(t, p.WeeklyPoints)
	assert.Equal(t, 50, p.DailyPoints)
	assert.Equal(t, 50, p.TotalPoints)
	assert.Contains(t, f.events.types(), shared.EventPointsReset)

	res, err = h.Handle(context.Background(), ResetPointsCommand{Period: "weekly"})
	require.NoError(t, err)
	assert.Zero(t, res.Reset)

	_, err = h.Handle(context.Background(), ResetPointsCommand{Period: "monthly"})
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
}

func TestUserHandler_CreateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createUser(t, "u1", "alice")
	assert.Equal(t, 1, p.Level)
	assert.Zero(t, p.TotalPoints)

	_, err := f.users.Create(ctx, CreateUserCommand{UserID: "u1", Username: "someone"})
	assert.Equal(t, shared.CodeUserAlreadyExists, shared.CodeOf(err))
	_, err = f.users.Create(ctx, CreateUserCommand{UserID: "u2", Username: "ALICE"})
	assert.Equal(t, shared.CodeUserAlreadyExists, shared.CodeOf(err))

	require.NoError(t, f.users.Delete(ctx, "u1"))
	_, err = f.store.GetByID(ctx, "u1")
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
	assert.Contains(t, f.events.types(), shared.EventUserDeleted)

	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(f.users.Delete(ctx, "u1")))
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "u1", "alice")

	name, community := "Alice A.", "Red Team Berlin"
	p, err := f.users.UpdateProfile(context.Background(), UpdateProfileCommand{UserID: "u1", DisplayName: &name, CommunityID: &community})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", p.DisplayName)
	assert.Equal(t, "red-team-berlin", p.CommunityID)

	_, err = f.users.UpdateProfile(context.Background(), UpdateProfileCommand{UserID: "u1"})
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
}

func TestUserHandler_CommunityHelp(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "helper", "helper")
	f.createUser(t, "asker", "asker")
	ctx := context.Background()

	var res *CommunityHelpResult
	for i := 0; i < 5; i++ {
		var err error
		res, err = f.users.RecordCommunityHelp(ctx, CommunityHelpCommand{HelperID: "helper", RequesterID: "asker"})
		require.NoError(t, err)
	}
	assert.Equal(t, 5*progression.PointsCommunityHelp, res.TotalPoints)
	assert.Equal(t, 5, res.CommunityHelps)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "helping_hand", res.NewBadges[0].ID)

	_, err := f.users.RecordCommunityHelp(ctx, CommunityHelpCommand{HelperID: "helper", RequesterID: "helper"})
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))

	_, err = f.users.RecordCommunityHelp(ctx, CommunityHelpCommand{HelperID: "helper", RequesterID: "ghost"})
	assert.Equal(t, shared.CodeUserNotFound, shared.CodeOf(err))
}
