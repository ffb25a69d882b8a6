// Package storetest is a behavioural test suite shared by every aggregate
// store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Backend is everything a full store provides.
type Backend interface {
	progression.Repository
	progression.HistoryRepository
	leaderboard.Store
}

// Now is the fixed clock used by the suite.
var Now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

// Run executes the suite. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, open(t)) })
	t.Run("UpdateCommitsWrites", func(t *testing.T) { testUpdateCommitsWrites(t, open(t)) })
	t.Run("UpdateNoChange", func(t *testing.T) { testUpdateNoChange(t, open(t)) })
	t.Run("UpdateErrorDiscards", func(t *testing.T) { testUpdateErrorDiscards(t, open(t)) })
	t.Run("DuplicateCompletion", func(t *testing.T) { testDuplicateCompletion(t, open(t)) })
	t.Run("DeletePurgesRecords", func(t *testing.T) { testDeletePurgesRecords(t, open(t)) })
	t.Run("ResetPoints", func(t *testing.T) { testResetPoints(t, open(t)) })
	t.Run("Standings", func(t *testing.T) { testStandings(t, open(t)) })
	t.Run("ListCompletionsRange", func(t *testing.T) { testListCompletionsRange(t, open(t)) })
}

// NewUser builds a fresh aggregate.
func NewUser(t *testing.T, id, username, community string) *progression.Progress {
	t.Helper()
	p, err := progression.NewProgress(progression.NewProgressParams{
		UserID:      id,
		Username:    username,
		CommunityID: community,
		Now:         Now,
	})
	require.NoError(t, err)
	return p
}

// Seed creates a user and awards points through the store.
func Seed(t *testing.T, s Backend, id, username, community string, points int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, id, username, community)))
	if points == 0 {
		return
	}
	_, err := s.Update(ctx, id, func(p *progression.Progress, _ *progression.Writes) error {
		_, err := p.ApplySubmission(progression.SubmissionDelta{
			GameType:     shared.GamePhishingDetective,
			PointsEarned: points,
		}, Now)
		return err
	})
	require.NoError(t, err)
}

func testCreateAndGet(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "blue-team")))

	err := s.Create(ctx, NewUser(t, "u-1", "alice2", ""))
	assert.True(t, shared.IsAlreadyExists(err), "duplicate id: %v", err)
	err = s.Create(ctx, NewUser(t, "u-2", "alice", ""))
	assert.True(t, shared.IsAlreadyExists(err), "duplicate username: %v", err)

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "blue-team", got.CommunityID)
	assert.Equal(t, 1, got.Level)
	assert.Empty(t, got.Badges)
	assert.Equal(t, 0, got.Counter(shared.CounterGamesPlayed))
	assert.True(t, got.LastActive.Equal(Now))

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func testUpdateCommitsWrites(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))
	before, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)

	for i, points := range []int{100, 250} {
		_, err := s.Update(ctx, "u-1", func(p *progression.Progress, w *progression.Writes) error {
			if _, err := p.ApplySubmission(progression.SubmissionDelta{
				GameType:     shared.GameURLInspector,
				PointsEarned: points,
				XPEarned:     points,
				CorrectCount: 3,
			}, Now); err != nil {
				return err
			}
			p.UnlockBadges([]string{"first_steps"})
			w.AddSession(progression.GameSession{
				ID:             uuid.NewString(),
				UserID:         p.UserID,
				GameType:       shared.GameURLInspector,
				Results:        []progression.QuestionResult{{QuestionID: "q1", UserAnswer: "safe", IsCorrect: true}},
				CorrectCount:   3,
				TotalQuestions: 5,
				Accuracy:       60,
				PointsEarned:   points,
				XPEarned:       points,
				CompletedAt:    Now.Add(time.Duration(i) * time.Minute),
			})
			return nil
		})
		require.NoError(t, err)
	}

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 350, got.TotalPoints)
	assert.Equal(t, 350, got.WeeklyPoints)
	assert.Equal(t, 350, got.XP)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, 6, got.Counter(shared.CounterURLsInspected))
	assert.Equal(t, 2, got.Counter(shared.CounterGamesPlayed))
	assert.Equal(t, []string{"first_steps"}, got.Badges)
	assert.Greater(t, got.Version, before.Version)

	sessions, err := s.ListSessions(ctx, "u-1", progression.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 250, sessions[0].PointsEarned, "newest first")
	require.Len(t, sessions[0].Results, 1)
	assert.True(t, sessions[0].Results[0].IsCorrect)

	filtered, err := s.ListSessions(ctx, "u-1", progression.SessionFilter{GameType: shared.GamePasswordStrength})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	limited, err := s.ListSessions(ctx, "u-1", progression.SessionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = s.Update(ctx, "missing", func(*progression.Progress, *progression.Writes) error { return nil })
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func testUpdateNoChange(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))

	got, err := s.Update(ctx, "u-1", func(p *progression.Progress, _ *progression.Writes) error {
		return progression.ErrNoChange
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
}

func testUpdateErrorDiscards(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "u-1", func(p *progression.Progress, w *progression.Writes) error {
		p.TotalPoints = 999
		w.AddSession(progression.GameSession{ID: uuid.NewString(), UserID: p.UserID, GameType: shared.GameURLInspector, CompletedAt: Now})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalPoints)
	sessions, err := s.ListSessions(ctx, "u-1", progression.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func completion(userID, date string) progression.DailyCompletion {
	return progression.DailyCompletion{
		ID:           uuid.NewString(),
		UserID:       userID,
		Date:         date,
		ChallengeID:  "daily-1",
		Answer:       "phishing",
		Correct:      true,
		PointsEarned: progression.PointsDailyChallenge,
		XPEarned:     progression.XPDailyChallenge,
		CompletedAt:  Now,
	}
}

func testDuplicateCompletion(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))

	add := func(p *progression.Progress, w *progression.Writes) error {
		p.DailyPoints += 10
		w.AddCompletion(completion(p.UserID, "2024-03-05"))
		return nil
	}
	_, err := s.Update(ctx, "u-1", add)
	require.NoError(t, err)

	_, err = s.Update(ctx, "u-1", add)
	assert.ErrorIs(t, err, shared.ErrAlreadyCompleted)

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.DailyPoints, "losing transaction must not be applied")

	ok, err := s.HasCompletion(ctx, "u-1", "2024-03-05")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasCompletion(ctx, "u-1", "2024-03-06")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDeletePurgesRecords(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))
	_, err := s.Update(ctx, "u-1", func(p *progression.Progress, w *progression.Writes) error {
		w.AddSession(progression.GameSession{ID: uuid.NewString(), UserID: p.UserID, GameType: shared.GamePasswordStrength, CompletedAt: Now})
		w.AddCompletion(completion(p.UserID, "2024-03-05"))
		p.TotalPoints = 1
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "u-1"))
	_, err = s.GetByID(ctx, "u-1")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u-1"), shared.ErrUserNotFound)

	sessions, err := s.ListSessions(ctx, "u-1", progression.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	ok, err := s.HasCompletion(ctx, "u-1", "2024-03-05")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")), "username is free again")
}

func testResetPoints(t *testing.T, s Backend) {
	ctx := context.Background()
	Seed(t, s, "u-1", "alice", "", 100)
	Seed(t, s, "u-2", "bob", "", 40)
	Seed(t, s, "u-3", "carol", "", 0)

	n, err := s.ResetPoints(ctx, progression.PeriodWeekly, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		p, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, p.WeeklyPoints, id)
		assert.Equal(t, p.TotalPoints, p.DailyPoints, "daily window untouched for %s", id)
	}

	n, err = s.ResetPoints(ctx, progression.PeriodWeekly, 2)
	require.NoError(t, err)
	assert.Zero(t, n, "second run finds nothing to reset")

	n, err = s.ResetPoints(ctx, progression.PeriodDaily, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	p, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Zero(t, p.DailyPoints)
	assert.Equal(t, 100, p.TotalPoints)
}

func testStandings(t *testing.T, s Backend) {
	ctx := context.Background()
	Seed(t, s, "u-b", "bravo", "red", 100)
	Seed(t, s, "u-a", "alpha", "blue", 100)
	Seed(t, s, "u-c", "charlie", "blue", 80)

	all, err := s.Standings(ctx, leaderboard.Query{Field: leaderboard.FieldTotalPoints})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"u-a", "u-b", "u-c"}, []string{all[0].UserID, all[1].UserID, all[2].UserID})
	assert.Equal(t, 1, all[0].Level)

	top, err := s.Standings(ctx, leaderboard.Query{Field: leaderboard.FieldWeeklyPoints, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, top, 2)

	blue, err := s.Standings(ctx, leaderboard.Query{Field: leaderboard.FieldTotalPoints, CommunityID: "blue"})
	require.NoError(t, err)
	require.Len(t, blue, 2)
	assert.Equal(t, "u-a", blue[0].UserID)

	above, err := s.CountAbove(ctx, leaderboard.FieldTotalPoints, 80, "")
	require.NoError(t, err)
	assert.Equal(t, 2, above)
	above, err = s.CountAbove(ctx, leaderboard.FieldTotalPoints, 100, "")
	require.NoError(t, err)
	assert.Zero(t, above)
	above, err = s.CountAbove(ctx, leaderboard.FieldTotalPoints, 80, "blue")
	require.NoError(t, err)
	assert.Equal(t, 1, above)

	total, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	total, err = s.Count(ctx, "red")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testListCompletionsRange(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewUser(t, "u-1", "alice", "")))
	for _, date := range []string{"2024-03-31", "2024-02-29", "2024-03-01", "2024-03-15"} {
		_, err := s.Update(ctx, "u-1", func(p *progression.Progress, w *progression.Writes) error {
			w.AddCompletion(completion(p.UserID, date))
			p.DailyPoints++
			return nil
		})
		require.NoError(t, err)
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.ListCompletions(ctx, "u-1", from, to)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "2024-03-15", got[1].Date)
	assert.Equal(t, "2024-03-31", got[2].Date)
	assert.True(t, got[0].Correct)
}
