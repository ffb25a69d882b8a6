package achievement

import (
	"math"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
)

// Engine evaluates the catalog against aggregates.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an engine over a catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog exposes the underlying catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Evaluate returns badges whose rule holds and that p does not have yet.
// It does not modify p.
func (e *Engine) Evaluate(p *progression.Progress) []BadgeDefinition {
	var out []BadgeDefinition
	for _, b := range e.catalog.badges {
		if p.HasBadge(b.ID) {
			continue
		}
		if b.Satisfied(p) {
			out = append(out, b)
		}
	}
	return out
}

// Unlock evaluates and appends the newly earned badges to p. Calling it again
// without an intervening change returns nothing.
func (e *Engine) Unlock(p *progression.Progress) []BadgeDefinition {
	earned := e.Evaluate(p)
	if len(earned) == 0 {
		return nil
	}
	ids := make([]string, len(earned))
	for i, b := range earned {
		ids[i] = b.ID
	}
	p.UnlockBadges(ids)
	return earned
}

// Summary is the user's unlocked set with overall completion.
type Summary struct {
	Unlocked         []BadgeDefinition `json:"unlocked"`
	Total            int               `json:"total"`
	Progress         float64           `json:"progress"`
	RecentlyUnlocked []BadgeDefinition `json:"recentlyUnlocked"`
}

// RecentCount is how many badges Summary reports as recent.
const RecentCount = 3

// Summarize resolves p's badges in unlock order. Ids missing from the
// catalog are skipped.
func (e *Engine) Summarize(p *progression.Progress) Summary {
	unlocked := make([]BadgeDefinition, 0, len(p.Badges))
	for _, id := range p.Badges {
		if b, err := e.catalog.Get(id); err == nil {
			unlocked = append(unlocked, b)
		}
	}

	s := Summary{Unlocked: unlocked, Total: e.catalog.Len(), RecentlyUnlocked: unlocked}
	if len(unlocked) > RecentCount {
		s.RecentlyUnlocked = unlocked[len(unlocked)-RecentCount:]
	}
	if s.Total > 0 {
		s.Progress = math.Round(float64(len(p.Badges))/float64(s.Total)*1000) / 10
	}
	return s
}

// BadgeProgress is the distance to one badge.
type BadgeProgress struct {
	BadgeID  string  `json:"badge"`
	Metric   string  `json:"metric"`
	Current  int     `json:"current"`
	Required int     `json:"required"`
	Unlocked bool    `json:"unlocked"`
	Percent  float64 `json:"percent"`
}

// ProgressTowards reports current/required for every badge in catalog order.
func (e *Engine) ProgressTowards(p *progression.Progress) []BadgeProgress {
	out := make([]BadgeProgress, 0, e.catalog.Len())
	for _, b := range e.catalog.badges {
		cur := MetricValue(p, b.Rule.Metric)
		pct := float64(cur) / float64(b.Rule.Threshold) * 100
		if pct > 100 {
			pct = 100
		}
		out = append(out, BadgeProgress{
			BadgeID:  b.ID,
			Metric:   b.Rule.Metric,
			Current:  cur,
			Required: b.Rule.Threshold,
			Unlocked: p.HasBadge(b.ID),
			Percent:  math.Round(pct*10) / 10,
		})
	}
	return out
}
