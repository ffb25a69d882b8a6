package progression

import (
	"fmt"
	"math"
)

// LevelThreshold is one row of the level table.
type LevelThreshold struct {
	Level      int    `json:"level"`
	XPRequired int    `json:"xpRequired"`
	Title      string `json:"title"`
}

// LevelTable is ordered by ascending level and XPRequired.
type LevelTable []LevelThreshold

// DefaultLevelTable is the production level curve.
var DefaultLevelTable = LevelTable{
	{Level: 1, XPRequired: 0, Title: "Security Novice"},
	{Level: 2, XPRequired: 100, Title: "Security Novice"},
	{Level: 3, XPRequired: 250, Title: "Security Novice"},
	{Level: 4, XPRequired: 450, Title: "Security Novice"},
	{Level: 5, XPRequired: 700, Title: "Security Novice"},
	{Level: 6, XPRequired: 1000, Title: "Aware User"},
	{Level: 7, XPRequired: 1400, Title: "Aware User"},
	{Level: 8, XPRequired: 1900, Title: "Aware User"},
	{Level: 9, XPRequired: 2500, Title: "Aware User"},
	{Level: 10, XPRequired: 3200, Title: "Aware User"},
	{Level: 11, XPRequired: 4000, Title: "Security Conscious"},
}

// MinLevel is the level of a fresh aggregate.
const MinLevel = 1

// NewLevelTable validates rows: level 1 at 0 XP first, then strictly
// increasing levels and thresholds.
func NewLevelTable(rows []LevelThreshold) (LevelTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}
	if rows[0].Level != MinLevel || rows[0].XPRequired != 0 {
		return nil, fmt.Errorf("level table must start with level 1 at 0 xp")
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Level <= rows[i-1].Level {
			return nil, fmt.Errorf("level %d out of order", rows[i].Level)
		}
		if rows[i].XPRequired <= rows[i-1].XPRequired {
			return nil, fmt.Errorf("xp threshold of level %d must exceed %d", rows[i].Level, rows[i-1].XPRequired)
		}
	}
	return LevelTable(rows), nil
}

// Resolve returns the highest level whose threshold is <= xp.
func (t LevelTable) Resolve(xp int) int {
	for i := len(t) - 1; i >= 0; i-- {
		if xp >= t[i].XPRequired {
			return t[i].Level
		}
	}
	return MinLevel
}

// Title returns the display title for a level.
func (t LevelTable) Title(level int) string {
	title := ""
	for _, row := range t {
		if row.Level > level {
			break
		}
		title = row.Title
	}
	if title == "" && len(t) > 0 {
		return t[0].Title
	}
	return title
}

// MaxLevel returns the ceiling of the table.
func (t LevelTable) MaxLevel() int {
	if len(t) == 0 {
		return MinLevel
	}
	return t[len(t)-1].Level
}

// LevelProgress describes where an XP total sits on the curve.
type LevelProgress struct {
	Level           int     `json:"level"`
	Title           string  `json:"title"`
	XP              int     `json:"xp"`
	CurrentLevelXP  int     `json:"currentLevelXp"`
	NextLevelXP     int     `json:"nextLevelXp,omitempty"`
	ProgressPercent float64 `json:"progressPercent"`
	IsMaxLevel      bool    `json:"isMaxLevel"`
}

// Progress reports the position of xp within its level.
func (t LevelTable) Progress(xp int) LevelProgress {
	level := t.Resolve(xp)
	p := LevelProgress{Level: level, Title: t.Title(level), XP: xp}

	for i, row := range t {
		if row.Level != level {
			continue
		}
		p.CurrentLevelXP = row.XPRequired
		if i == len(t)-1 {
			p.IsMaxLevel = true
			p.ProgressPercent = 100
			return p
		}
		p.NextLevelXP = t[i+1].XPRequired
		span := p.NextLevelXP - p.CurrentLevelXP
		p.ProgressPercent = math.Round(float64(xp-p.CurrentLevelXP)/float64(span)*1000) / 10
		return p
	}
	return p
}

// ResolveLevel resolves xp against DefaultLevelTable.
func ResolveLevel(xp int) int {
	return DefaultLevelTable.Resolve(xp)
}
