package challenge

import (
	"math/rand/v2"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// DailyTimeLimitSeconds is the answer window shown with the daily challenge.
const DailyTimeLimitSeconds = 60

// SelectForDate picks pool[YYYYMMDD mod len(pool)]. The result depends only on
// the date string and the pool, so every process agrees on today's challenge.
func SelectForDate(pool []Challenge, date string) (Challenge, error) {
	seed, err := timeutil.DateSeed(date)
	if err != nil {
		return Challenge{}, shared.WrapError("daily", "Select", shared.ErrInvalidArgument, "date must be YYYY-MM-DD", err)
	}
	if len(pool) == 0 {
		return Challenge{}, shared.WrapError("daily", "Select", shared.ErrInvalidState, "daily pool is empty", nil)
	}
	return pool[seed%len(pool)], nil
}

// DailyChallenge is the public daily view.
type DailyChallenge struct {
	PublicChallenge
	Date      string `json:"date"`
	TimeLimit int    `json:"timeLimit"`
}

// ForDate selects today's challenge from the catalog's daily pool and strips it.
func (c *Catalog) ForDate(date string) (Challenge, DailyChallenge, error) {
	ch, err := SelectForDate(c.DailyPool(), date)
	if err != nil {
		return Challenge{}, DailyChallenge{}, err
	}
	return ch, DailyChallenge{PublicChallenge: ch.Public(), Date: date, TimeLimit: DailyTimeLimitSeconds}, nil
}

// Defaults for Sample.
const (
	DefaultCount = 5
	MaxCount     = 20
)

// Sample filters pool by difficulty and returns up to count challenges chosen
// by a Fisher-Yates shuffle driven by rng. The same rng seed yields the same
// selection.
func Sample(pool []Challenge, difficulty shared.Difficulty, count int, rng *rand.Rand) []Challenge {
	count = shared.ClampLimit(count, DefaultCount, MaxCount)

	filtered := make([]Challenge, 0, len(pool))
	for _, ch := range pool {
		if ch.Difficulty == difficulty {
			filtered = append(filtered, ch)
		}
	}

	for i := len(filtered) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	if len(filtered) > count {
		filtered = filtered[:count]
	}
	return filtered
}

// PublicAll strips a slice of challenges.
func PublicAll(chs []Challenge) []PublicChallenge {
	out := make([]PublicChallenge, len(chs))
	for i, ch := range chs {
		out[i] = ch.Public()
	}
	return out
}
