package progression

import (
	"time"

	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// StreakUpdate is the outcome of applying the streak rule.
type StreakUpdate struct {
	Previous int  `json:"previous"`
	Current  int  `json:"streakDays"`
	DaysDiff int  `json:"daysDiff"`
	WasReset bool `json:"wasReset"`
}

// Changed reports whether the streak counter moved.
func (s StreakUpdate) Changed() bool {
	return s.Previous != s.Current
}

// NextStreak applies the calendar rule between the last activity and now.
// Same day or clock skew keeps the streak, the next day extends it, and any
// longer gap restarts it at one.
func NextStreak(streak int, lastActive, now time.Time) StreakUpdate {
	diff := timeutil.DaysBetween(lastActive, now)
	u := StreakUpdate{Previous: streak, Current: streak, DaysDiff: diff}

	switch {
	case diff == 1:
		u.Current = streak + 1
	case diff > 1:
		u.Current = 1
		u.WasReset = true
	}
	return u
}
