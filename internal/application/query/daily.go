package query

import (
	"context"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CHALLENGE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// DailyRewards are the points and XP a correct daily answer is worth.
type DailyRewards struct {
	Points int `json:"points"`
	XP     int `json:"xp"`
}

// DailyView is today's challenge for one user. Challenge is nil once the
// user completed today.
type DailyView struct {
	Challenge       *challenge.DailyChallenge `json:"challenge"`
	Date            string                    `json:"date"`
	TimeLimit       int                       `json:"timeLimit"`
	IsCompleted     bool                      `json:"isCompleted"`
	StreakDays      int                       `json:"streakDays"`
	NextChallengeIn string                    `json:"nextChallengeIn"`
	Rewards         DailyRewards              `json:"rewards"`
}

// DailyStatus is the completion state without the challenge.
type DailyStatus struct {
	Date            string `json:"date"`
	IsCompleted     bool   `json:"isCompleted"`
	StreakDays      int    `json:"streakDays"`
	LastCompleted   string `json:"lastCompleted,omitempty"`
	NextChallengeIn string `json:"nextChallengeIn"`
}

// DailyHandler answers daily challenge queries.
type DailyHandler struct {
	users   progression.Repository
	history progression.HistoryRepository
	catalog *challenge.Catalog
	now     func() time.Time
}

// NewDailyHandler creates a DailyHandler.
func NewDailyHandler(users progression.Repository, history progression.HistoryRepository, catalog *challenge.Catalog, clock func() time.Time) *DailyHandler {
	return &DailyHandler{users: users, history: history, catalog: catalog, now: nowOr(clock)}
}

// Get returns today's challenge, stripped of its answer.
func (h *DailyHandler) Get(ctx context.Context, userID string) (*DailyView, error) {
	now := h.now()
	p, date, done, err := h.completion(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	view := &DailyView{
		Date:            date,
		TimeLimit:       challenge.DailyTimeLimitSeconds,
		IsCompleted:     done,
		StreakDays:      p.StreakDays,
		NextChallengeIn: timeutil.UntilMidnight(now),
		Rewards:         DailyRewards{Points: progression.PointsDailyChallenge, XP: progression.XPDailyChallenge},
	}
	if !done {
		_, daily, err := h.catalog.ForDate(date)
		if err != nil {
			return nil, err
		}
		view.Challenge = &daily
	}
	return view, nil
}

// Status reports whether today's challenge is done.
func (h *DailyHandler) Status(ctx context.Context, userID string) (*DailyStatus, error) {
	now := h.now()
	p, date, done, err := h.completion(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return &DailyStatus{
		Date:            date,
		IsCompleted:     done,
		StreakDays:      p.StreakDays,
		LastCompleted:   p.LastDailyChallengeDate,
		NextChallengeIn: timeutil.UntilMidnight(now),
	}, nil
}

// completion loads the user and decides whether today is done. The aggregate's
// last daily date answers most calls; the completion records are the
// authority otherwise.
func (h *DailyHandler) completion(ctx context.Context, userID string, now time.Time) (*progression.Progress, string, bool, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, "", false, err
	}
	p, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", false, err
	}

	date := progression.Today(now)
	if p.CompletedDailyOn(date) {
		return p, date, true, nil
	}
	done, err := h.history.HasCompletion(ctx, userID, date)
	if err != nil {
		return nil, "", false, err
	}
	return p, date, done, nil
}
