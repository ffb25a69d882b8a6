package progression

import (
	"slices"
	"strings"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE: PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is the per-user aggregate.
type Progress struct {
	UserID      string
	Username    string
	DisplayName string
	CommunityID string

	TotalPoints  int
	WeeklyPoints int
	DailyPoints  int
	XP           int
	Level        int
	StreakDays   int
	LastActive   time.Time

	// Badges are unique and append-only, in unlock order.
	Badges []string

	// Achievements are monotonic counters keyed by shared.Counter* names.
	Achievements map[string]int

	// LastDailyChallengeDate is YYYY-MM-DD or empty.
	LastDailyChallengeDate string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is bumped by the store on every committed write.
	Version int64
}

// NewProgressParams are the inputs of NewProgress.
type NewProgressParams struct {
	UserID      string
	Username    string
	DisplayName string
	CommunityID string
	Now         time.Time
}

// NewProgress creates a zeroed aggregate at level 1.
func NewProgress(p NewProgressParams) (*Progress, error) {
	if err := shared.ValidateUserID(p.UserID); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(p.Username)
	if len(username) < 3 || len(username) > 30 {
		return nil, shared.WrapError("progress", "Create", shared.ErrInvalidArgument, "username must be 3-30 characters", nil)
	}
	display := strings.TrimSpace(p.DisplayName)
	if display == "" {
		display = username
	}
	if len(display) > 50 {
		return nil, shared.WrapError("progress", "Create", shared.ErrInvalidArgument, "display name must be at most 50 characters", nil)
	}

	now := p.Now.UTC()
	counters := make(map[string]int, len(shared.AllCounters))
	for _, c := range shared.AllCounters {
		counters[c] = 0
	}

	return &Progress{
		UserID:       strings.TrimSpace(p.UserID),
		Username:     username,
		DisplayName:  display,
		CommunityID:  NormalizeCommunityID(p.CommunityID),
		Level:        MinLevel,
		LastActive:   now,
		Badges:       []string{},
		Achievements: counters,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Clone returns a deep copy so a transaction can mutate freely.
func (p *Progress) Clone() *Progress {
	c := *p
	c.Badges = slices.Clone(p.Badges)
	if c.Badges == nil {
		c.Badges = []string{}
	}
	c.Achievements = make(map[string]int, len(p.Achievements))
	for k, v := range p.Achievements {
		c.Achievements[k] = v
	}
	return &c
}

// Counter returns the value of an achievement counter (zero when absent).
func (p *Progress) Counter(name string) int {
	return p.Achievements[name]
}

// HasBadge reports whether the badge is unlocked.
func (p *Progress) HasBadge(id string) bool {
	return slices.Contains(p.Badges, id)
}

// LevelChange describes the level before and after a write.
type LevelChange struct {
	Old int
	New int
}

// LeveledUp reports whether the write moved the user up.
func (c LevelChange) LeveledUp() bool { return c.New > c.Old }

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// award adds points to all three windows and XP, recomputing the level.
func (p *Progress) award(points, xp int, now time.Time) LevelChange {
	old := p.Level
	p.TotalPoints += points
	p.WeeklyPoints += points
	p.DailyPoints += points
	p.XP += xp
	p.Level = ResolveLevel(p.XP)
	p.touch(now)
	return LevelChange{Old: old, New: p.Level}
}

func (p *Progress) touch(now time.Time) {
	now = now.UTC()
	if now.After(p.LastActive) {
		p.LastActive = now
	}
	p.UpdatedAt = now
}

func (p *Progress) incr(counter string, by int) {
	if p.Achievements == nil {
		p.Achievements = make(map[string]int)
	}
	p.Achievements[counter] += by
}

// SubmissionDelta is one scored game submission.
type SubmissionDelta struct {
	GameType     shared.GameType
	PointsEarned int
	XPEarned     int
	CorrectCount int
	Perfect      bool
}

// ApplySubmission folds a scored submission into the aggregate.
func (p *Progress) ApplySubmission(d SubmissionDelta, now time.Time) (LevelChange, error) {
	if !d.GameType.IsValid() {
		return LevelChange{}, shared.ErrInvalidGameType
	}
	if d.PointsEarned < 0 || d.XPEarned < 0 || d.CorrectCount < 0 {
		return LevelChange{}, shared.WrapError("progress", "ApplySubmission", shared.ErrInvalidArgument, "deltas must be non-negative", nil)
	}

	p.incr(d.GameType.CounterKey(), d.CorrectCount)
	p.incr(shared.CounterGamesPlayed, 1)
	if d.Perfect {
		p.incr(shared.CounterPerfectScores, 1)
	}
	return p.award(d.PointsEarned, d.XPEarned, now), nil
}

// CompleteDaily records today's daily-challenge reward. The caller has already
// checked the completion record; the date guard here catches the fast path.
func (p *Progress) CompleteDaily(date string, points, xp int, now time.Time) (LevelChange, error) {
	if p.LastDailyChallengeDate == date {
		return LevelChange{}, shared.ErrAlreadyCompleted
	}
	p.LastDailyChallengeDate = date
	return p.award(points, xp, now), nil
}

// RecordCommunityHelp credits a help given to another user.
func (p *Progress) RecordCommunityHelp(now time.Time) LevelChange {
	p.incr(shared.CounterCommunityHelps, 1)
	return p.award(PointsCommunityHelp, 0, now)
}

// ApplyStreak runs the streak rule against LastActive and moves LastActive
// forward to now (never backwards).
func (p *Progress) ApplyStreak(now time.Time) StreakUpdate {
	u := NextStreak(p.StreakDays, p.LastActive, now)
	p.StreakDays = u.Current
	p.touch(now)
	return u
}

// UnlockBadges appends ids that are not yet present and returns those added.
func (p *Progress) UnlockBadges(ids []string) []string {
	var added []string
	for _, id := range ids {
		if id == "" || p.HasBadge(id) {
			continue
		}
		p.Badges = append(p.Badges, id)
		added = append(added, id)
	}
	return added
}

// ResetWindow zeroes a periodic points window. Returns false when already zero.
func (p *Progress) ResetWindow(period Period) bool {
	switch period {
	case PeriodWeekly:
		if p.WeeklyPoints == 0 {
			return false
		}
		p.WeeklyPoints = 0
	case PeriodDaily:
		if p.DailyPoints == 0 {
			return false
		}
		p.DailyPoints = 0
	default:
		return false
	}
	return true
}

// UpdateProfile changes display fields. Nil pointers leave a field unchanged.
func (p *Progress) UpdateProfile(displayName, communityID *string, now time.Time) error {
	if displayName != nil {
		d := strings.TrimSpace(*displayName)
		if d == "" || len(d) > 50 {
			return shared.WrapError("progress", "UpdateProfile", shared.ErrInvalidArgument, "display name must be 1-50 characters", nil)
		}
		p.DisplayName = d
	}
	if communityID != nil {
		p.CommunityID = NormalizeCommunityID(*communityID)
	}
	p.UpdatedAt = now.UTC()
	return nil
}

// CompletedDailyOn reports the fast-path completion flag.
func (p *Progress) CompletedDailyOn(date string) bool {
	return p.LastDailyChallengeDate != "" && p.LastDailyChallengeDate == date
}

// Today formats now as the aggregate's calendar date.
func Today(now time.Time) string {
	return timeutil.FormatDate(now)
}

// Period names a periodic points window.
type Period string

const (
	PeriodWeekly Period = "weekly"
	PeriodDaily  Period = "daily"
)

// ParsePeriod validates a reset period.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodWeekly, PeriodDaily:
		return p, nil
	}
	return "", shared.WrapError("progress", "ParsePeriod", shared.ErrInvalidArgument, "period must be weekly or daily", nil)
}
