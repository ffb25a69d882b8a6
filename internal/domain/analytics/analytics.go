// Package analytics derives skill scores and community comparisons from a
// user's sessions and aggregate. Everything here is a pure function.
package analytics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// DefaultSkillScore is reported for a game the user has not played.
const DefaultSkillScore = 50

// DefaultCommunityAverage is the fallback when the community scan is
// unavailable or the store is empty.
const DefaultCommunityAverage = 70

// SkillScores is the radar chart of one user.
type SkillScores struct {
	Phishing  int `json:"phishing"`
	Passwords int `json:"passwords"`
	URLs      int `json:"urls"`
	Awareness int `json:"awareness"`
}

// Skill display names.
const (
	SkillPhishing  = "Phishing Detection"
	SkillPasswords = "Password Security"
	SkillURLs      = "URL Inspection"
	SkillAwareness = "Security Awareness"
)

// CalculateSkillScores averages session accuracy per game type and derives
// awareness from streak and badge count.
func CalculateSkillScores(sessions []progression.GameSession, streakDays, badgeCount int) SkillScores {
	sums := make(map[shared.GameType]float64, 3)
	counts := make(map[shared.GameType]int, 3)
	for _, s := range sessions {
		sums[s.GameType] += s.Accuracy
		counts[s.GameType]++
	}
	avg := func(gt shared.GameType) int {
		if counts[gt] == 0 {
			return DefaultSkillScore
		}
		return int(math.Round(sums[gt] / float64(counts[gt])))
	}

	streakScore := min(streakDays*10, 50)
	badgeScore := min(badgeCount*5, 50)

	return SkillScores{
		Phishing:  avg(shared.GamePhishingDetective),
		Passwords: avg(shared.GamePasswordStrength),
		URLs:      avg(shared.GameURLInspector),
		Awareness: int(math.Round(float64(streakScore+badgeScore) / 2)),
	}
}

// Overall is the weighted security score.
func (s SkillScores) Overall() int {
	return int(math.Round(0.3*float64(s.Phishing) + 0.3*float64(s.Passwords) + 0.25*float64(s.URLs) + 0.15*float64(s.Awareness)))
}

// StrengthsAndWeaknesses returns the two best and two worst skills. Equal
// scores keep radar order.
func (s SkillScores) StrengthsAndWeaknesses() (strengths, weaknesses []string) {
	type skill struct {
		name  string
		score int
	}
	skills := []skill{
		{SkillPhishing, s.Phishing},
		{SkillPasswords, s.Passwords},
		{SkillURLs, s.URLs},
		{SkillAwareness, s.Awareness},
	}
	slices.SortStableFunc(skills, func(a, b skill) int { return cmp.Compare(b.score, a.score) })

	for _, sk := range skills[:2] {
		strengths = append(strengths, sk.name)
	}
	for _, sk := range skills[len(skills)-2:] {
		weaknesses = append(weaknesses, sk.name)
	}
	return strengths, weaknesses
}

// CommunityMember is the slice of an aggregate the community estimate needs.
type CommunityMember struct {
	Level       int
	TotalPoints int
}

// CommunityAverage estimates the mean security score of the community as
// min(40 + 3*level + points/100, 100) per user. An empty community yields
// DefaultCommunityAverage.
func CommunityAverage(members []CommunityMember) int {
	if len(members) == 0 {
		return DefaultCommunityAverage
	}
	total := 0.0
	for _, m := range members {
		total += math.Min(40+float64(m.Level)*3+float64(m.TotalPoints)/100, 100)
	}
	return int(math.Round(total / float64(len(members))))
}

// PercentileBucket places a score relative to the community average.
func PercentileBucket(score, average int) int {
	switch {
	case score >= average+20:
		return 90
	case score >= average+10:
		return 75
	case score >= average:
		return 60
	case score >= average-10:
		return 40
	default:
		return 25
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// CalendarDay is one cell of the calendar.
type CalendarDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// StreakCalendar marks the days of a month with a daily completion.
type StreakCalendar struct {
	Year           int           `json:"year"`
	Month          int           `json:"month"`
	Days           []CalendarDay `json:"days"`
	TotalCompleted int           `json:"totalCompleted"`
}

// ValidateMonth checks year and month ranges.
func ValidateMonth(year, month int) error {
	if year < 2000 || year > 9999 || month < 1 || month > 12 {
		return shared.WrapError("analytics", "StreakCalendar", shared.ErrInvalidArgument, fmt.Sprintf("invalid month %d-%d", year, month), nil)
	}
	return nil
}

// BuildStreakCalendar lays completions out over the month. Completions outside
// the month are ignored.
func BuildStreakCalendar(year, month int, completions []progression.DailyCompletion) StreakCalendar {
	done := make(map[string]bool, len(completions))
	for _, c := range completions {
		done[c.Date] = true
	}

	start, _ := timeutil.MonthBounds(year, time.Month(month))
	n := timeutil.DaysInMonth(year, time.Month(month))
	cal := StreakCalendar{Year: year, Month: month, Days: make([]CalendarDay, n)}
	for i := range n {
		date := timeutil.FormatDate(start.AddDate(0, 0, i))
		cal.Days[i] = CalendarDay{Date: date, Completed: done[date]}
		if done[date] {
			cal.TotalCompleted++
		}
	}
	return cal
}
