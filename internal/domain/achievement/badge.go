// Package achievement evaluates badge-unlock rules against a progress
// aggregate. Rules are data: each badge names one metric and a threshold,
// so evaluation is order-independent and never depends on other badges.
package achievement

import (
	"fmt"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// Rarity of a badge.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Metrics derived from the aggregate rather than the counters map.
const (
	MetricStreakDays  = "streak_days"
	MetricLevel       = "level"
	MetricTotalPoints = "total_points"
)

// Rule is the unlock predicate: metric >= Threshold.
type Rule struct {
	Metric    string `json:"metric"`
	Threshold int    `json:"threshold"`
}

// BadgeDefinition is a read-only catalog entry.
type BadgeDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      Rarity `json:"rarity"`
	Rule        Rule   `json:"rule"`
}

// knownMetrics lists every metric a rule may reference.
func knownMetrics() map[string]bool {
	m := map[string]bool{
		MetricStreakDays:  true,
		MetricLevel:       true,
		MetricTotalPoints: true,
	}
	for _, c := range shared.AllCounters {
		m[c] = true
	}
	return m
}

// MetricValue reads a rule metric from the aggregate.
func MetricValue(p *progression.Progress, metric string) int {
	switch metric {
	case MetricStreakDays:
		return p.StreakDays
	case MetricLevel:
		return p.Level
	case MetricTotalPoints:
		return p.TotalPoints
	default:
		return p.Counter(metric)
	}
}

// Satisfied evaluates the rule against p.
func (b BadgeDefinition) Satisfied(p *progression.Progress) bool {
	return MetricValue(p, b.Rule.Metric) >= b.Rule.Threshold
}

func (b BadgeDefinition) validate(metrics map[string]bool) error {
	switch {
	case b.ID == "":
		return fmt.Errorf("badge without id")
	case b.Name == "":
		return fmt.Errorf("badge %s: name is required", b.ID)
	case !metrics[b.Rule.Metric]:
		return fmt.Errorf("badge %s: unknown metric %q", b.ID, b.Rule.Metric)
	case b.Rule.Threshold <= 0:
		return fmt.Errorf("badge %s: threshold must be positive", b.ID)
	}
	switch b.Rarity {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
	default:
		return fmt.Errorf("badge %s: unknown rarity %q", b.ID, b.Rarity)
	}
	return nil
}

// Catalog is the ordered, validated set of badges.
type Catalog struct {
	badges []BadgeDefinition
	byID   map[string]int
}

// NewCatalog validates definitions and rejects duplicates.
func NewCatalog(defs []BadgeDefinition) (*Catalog, error) {
	metrics := knownMetrics()
	c := &Catalog{badges: make([]BadgeDefinition, 0, len(defs)), byID: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := d.validate(metrics); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate badge id %s", d.ID)
		}
		c.byID[d.ID] = len(c.badges)
		c.badges = append(c.badges, d)
	}
	return c, nil
}

// All returns a copy of every badge in catalog order.
func (c *Catalog) All() []BadgeDefinition {
	out := make([]BadgeDefinition, len(c.badges))
	copy(out, c.badges)
	return out
}

// Len returns the number of badges.
func (c *Catalog) Len() int { return len(c.badges) }

// Get returns a badge by id or shared.ErrBadgeNotFound.
func (c *Catalog) Get(id string) (BadgeDefinition, error) {
	i, ok := c.byID[id]
	if !ok {
		return BadgeDefinition{}, shared.ErrBadgeNotFound
	}
	return c.badges[i], nil
}
