// Package challenge holds the read-only challenge catalog and the pure
// selection logic on top of it: seeded sampling for regular games, the
// date-seeded daily pick, and answer grading.
package challenge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Challenge is one catalog question. CorrectAnswer, Explanation and RedFlags
// are never exposed before the user has answered.
type Challenge struct {
	ID            string            `json:"id"`
	GameType      shared.GameType   `json:"gameType"`
	Difficulty    shared.Difficulty `json:"difficulty"`
	Prompt        string            `json:"prompt"`
	Content       map[string]string `json:"content,omitempty"`
	Options       []string          `json:"options,omitempty"`
	CorrectAnswer string            `json:"correctAnswer"`
	Explanation   string            `json:"explanation"`
	RedFlags      []string          `json:"redFlags,omitempty"`
	Hints         []string          `json:"hints,omitempty"`
}

// PublicChallenge is the answer-free view sent to clients.
type PublicChallenge struct {
	ID         string            `json:"id"`
	GameType   shared.GameType   `json:"gameType"`
	Difficulty shared.Difficulty `json:"difficulty"`
	Prompt     string            `json:"prompt"`
	Content    map[string]string `json:"content,omitempty"`
	Options    []string          `json:"options,omitempty"`
	Hints      []string          `json:"hints,omitempty"`
}

// Public strips the answer, the explanation and the red flags.
func (c Challenge) Public() PublicChallenge {
	return PublicChallenge{
		ID:         c.ID,
		GameType:   c.GameType,
		Difficulty: c.Difficulty,
		Prompt:     c.Prompt,
		Content:    c.Content,
		Options:    slices.Clone(c.Options),
		Hints:      slices.Clone(c.Hints),
	}
}

// IsCorrect compares an answer to the canonical one, ignoring case and
// surrounding whitespace.
func (c Challenge) IsCorrect(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(c.CorrectAnswer))
}

func (c Challenge) validate() error {
	if c.ID == "" {
		return fmt.Errorf("challenge without id")
	}
	if c.CorrectAnswer == "" {
		return fmt.Errorf("challenge %s: correct answer is required", c.ID)
	}
	switch c.Difficulty {
	case shared.DifficultyEasy, shared.DifficultyMedium, shared.DifficultyHard:
	default:
		return fmt.Errorf("challenge %s: unknown difficulty %q", c.ID, c.Difficulty)
	}
	if len(c.Options) > 0 && !slices.ContainsFunc(c.Options, c.IsCorrect) {
		return fmt.Errorf("challenge %s: correct answer is not one of the options", c.ID)
	}
	return nil
}

// Catalog indexes challenges by game type.
type Catalog struct {
	pools map[shared.GameType][]Challenge
	byID  map[shared.GameType]map[string]int

	// dailyType is the pool the daily challenge is drawn from.
	dailyType shared.GameType
}

// DailyGameType is the pool used for the daily challenge.
const DailyGameType = shared.GamePhishingDetective

// NewCatalog validates pools. Ids must be unique per game type, and the daily
// pool must not be empty.
func NewCatalog(pools map[shared.GameType][]Challenge) (*Catalog, error) {
	c := &Catalog{
		pools:     make(map[shared.GameType][]Challenge, len(pools)),
		byID:      make(map[shared.GameType]map[string]int, len(pools)),
		dailyType: DailyGameType,
	}
	for gt, pool := range pools {
		if !gt.IsValid() {
			return nil, fmt.Errorf("unknown game type %q in catalog", gt)
		}
		idx := make(map[string]int, len(pool))
		out := make([]Challenge, 0, len(pool))
		for _, ch := range pool {
			ch.GameType = gt
			if err := ch.validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", gt, err)
			}
			if _, dup := idx[ch.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate challenge id %s", gt, ch.ID)
			}
			idx[ch.ID] = len(out)
			out = append(out, ch)
		}
		c.pools[gt] = out
		c.byID[gt] = idx
	}
	if len(c.pools[c.dailyType]) == 0 {
		return nil, fmt.Errorf("daily pool %s is empty", c.dailyType)
	}
	return c, nil
}

// Pool returns the challenges of a game type in catalog order.
func (c *Catalog) Pool(gt shared.GameType) ([]Challenge, error) {
	if !gt.IsValid() {
		return nil, shared.ErrInvalidGameType
	}
	return c.pools[gt], nil
}

// Find looks up a challenge by game type and id.
func (c *Catalog) Find(gt shared.GameType, id string) (Challenge, bool) {
	i, ok := c.byID[gt][id]
	if !ok {
		return Challenge{}, false
	}
	return c.pools[gt][i], true
}

// DailyPool returns the fixed pool of single-answer daily challenges.
func (c *Catalog) DailyPool() []Challenge {
	return c.pools[c.dailyType]
}

// Size returns the number of challenges across all pools.
func (c *Catalog) Size() int {
	n := 0
	for _, p := range c.pools {
		n += len(p)
	}
	return n
}
