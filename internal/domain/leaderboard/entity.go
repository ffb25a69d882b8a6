// Package leaderboard ranks users by one of their point windows. It is a
// read-only view over progress aggregates: rankings may lag behind writes.
package leaderboard

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Timeframe selects which point window a ranking uses.
type Timeframe string

const (
	TimeframeAllTime Timeframe = "all-time"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeDaily   Timeframe = "daily"
)

// ParseTimeframe validates a timeframe; empty means all-time.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(raw))); tf {
	case "":
		return TimeframeAllTime, nil
	case TimeframeAllTime, TimeframeWeekly, TimeframeDaily:
		return tf, nil
	}
	return "", shared.WrapError("leaderboard", "ParseTimeframe", shared.ErrInvalidArgument, "timeframe must be all-time, weekly or daily", nil)
}

// Field is the aggregate column a ranking sorts on.
type Field string

const (
	FieldTotalPoints  Field = "total_points"
	FieldWeeklyPoints Field = "weekly_points"
	FieldDailyPoints  Field = "daily_points"
)

// Field maps the timeframe to its points column.
func (t Timeframe) Field() Field {
	switch t {
	case TimeframeWeekly:
		return FieldWeeklyPoints
	case TimeframeDaily:
		return FieldDailyPoints
	default:
		return FieldTotalPoints
	}
}

// ResetField maps a reset period to the column it zeroes.
func ResetField(period progression.Period) Field {
	if period == progression.PeriodDaily {
		return FieldDailyPoints
	}
	return FieldWeeklyPoints
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS & ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// Standing is the ranking-relevant projection of one aggregate.
type Standing struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	CommunityID  string    `json:"communityId,omitempty"`
	TotalPoints  int       `json:"totalPoints"`
	WeeklyPoints int       `json:"weeklyPoints"`
	DailyPoints  int       `json:"dailyPoints"`
	Level        int       `json:"level"`
	BadgeCount   int       `json:"badges"`
	LastActive   time.Time `json:"lastActive"`
}

// StandingOf projects an aggregate.
func StandingOf(p *progression.Progress) Standing {
	return Standing{
		UserID:       p.UserID,
		Username:     p.Username,
		DisplayName:  p.DisplayName,
		CommunityID:  p.CommunityID,
		TotalPoints:  p.TotalPoints,
		WeeklyPoints: p.WeeklyPoints,
		DailyPoints:  p.DailyPoints,
		Level:        p.Level,
		BadgeCount:   len(p.Badges),
		LastActive:   p.LastActive,
	}
}

// Points reads the column selected by f.
func (s Standing) Points(f Field) int {
	switch f {
	case FieldWeeklyPoints:
		return s.WeeklyPoints
	case FieldDailyPoints:
		return s.DailyPoints
	default:
		return s.TotalPoints
	}
}

// Entry is one ranked row.
type Entry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Points      int       `json:"points"`
	Level       int       `json:"level"`
	Badges      int       `json:"badges"`
	LastActive  time.Time `json:"lastActive"`
}

// Compare orders standings by points descending, then user id ascending.
// Every store applies the same order, so equal totals rank deterministically.
func Compare(f Field) func(a, b Standing) int {
	return func(a, b Standing) int {
		if c := cmp.Compare(b.Points(f), a.Points(f)); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	}
}

// Rank sorts a copy of standings and assigns ranks 1..n, truncating to limit
// when limit > 0.
func Rank(standings []Standing, f Field, limit int) []Entry {
	sorted := slices.Clone(standings)
	slices.SortStableFunc(sorted, Compare(f))
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return Entries(sorted, f, 1)
}

// Entries numbers already-sorted standings starting at firstRank.
func Entries(sorted []Standing, f Field, firstRank int) []Entry {
	out := make([]Entry, len(sorted))
	for i, s := range sorted {
		out[i] = Entry{
			Rank:        firstRank + i,
			UserID:      s.UserID,
			Username:    s.Username,
			DisplayName: s.DisplayName,
			Points:      s.Points(f),
			Level:       s.Level,
			Badges:      s.BadgeCount,
			LastActive:  s.LastActive,
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// USER RANK
// ══════════════════════════════════════════════════════════════════════════════

// UserRank is one user's position in a timeframe.
type UserRank struct {
	UserID     string    `json:"userId"`
	Timeframe  Timeframe `json:"timeframe"`
	Rank       int       `json:"rank"`
	Points     int       `json:"points"`
	TotalUsers int       `json:"totalUsers"`
	Percentile float64   `json:"percentile"`
}

// NewUserRank derives rank as (users strictly above) + 1.
func NewUserRank(userID string, tf Timeframe, points, above, total int) UserRank {
	rank := above + 1
	if total < rank {
		total = rank
	}
	return UserRank{
		UserID:     userID,
		Timeframe:  tf,
		Rank:       rank,
		Points:     points,
		TotalUsers: total,
		Percentile: Percentile(rank, total),
	}
}

// Percentile is (total - rank) / total * 100 rounded to one decimal.
func Percentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(total-rank)/float64(total)*1000) / 10
}
