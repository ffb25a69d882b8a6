package query

import (
	"context"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/analytics"
	"github.com/cyberquest/cyberquest-api/internal/domain/leaderboard"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/circuitbreaker"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
	"github.com/cyberquest/cyberquest-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// UserAnalytics is the skill report of one user.
type UserAnalytics struct {
	OverallScore     int                   `json:"overallScore"`
	SkillRadar       analytics.SkillScores `json:"skillRadar"`
	Strengths        []string              `json:"strengths"`
	Weaknesses       []string              `json:"weaknesses"`
	CommunityAverage int                   `json:"communityAverage"`
	Percentile       int                   `json:"percentile"`
	GamesPlayed      int                   `json:"gamesPlayed"`
	TotalPoints      int                   `json:"totalPoints"`
	Level            int                   `json:"level"`
	StreakDays       int                   `json:"streakDays"`
}

// AnalyticsConfig tunes the community estimate.
type AnalyticsConfig struct {
	// CommunityAverage is served when the store scan fails or is disabled.
	CommunityAverage int

	// ScanCommunity enables the full-store scan.
	ScanCommunity bool
}

// AnalyticsHandler answers analytics queries.
type AnalyticsHandler struct {
	users   progression.Repository
	history progression.HistoryRepository
	store   leaderboard.Store
	breaker *circuitbreaker.CircuitBreaker
	config  AnalyticsConfig
	log     *logger.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(
	users progression.Repository,
	history progression.HistoryRepository,
	store leaderboard.Store,
	config AnalyticsConfig,
	log *logger.Logger,
) *AnalyticsHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.CommunityAverage <= 0 {
		config.CommunityAverage = analytics.DefaultCommunityAverage
	}
	log = log.With(logger.Component("analytics"))
	return &AnalyticsHandler{
		users:   users,
		history: history,
		store:   store,
		breaker: circuitbreaker.AggregateScanBreaker(logStateChange(log), circuitbreaker.WithIsFailure(shared.IsDegradable)),
		config:  config,
		log:     log,
	}
}

// UserAnalytics scores the user's sessions and places them against the
// community estimate.
func (h *AnalyticsHandler) UserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	p, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := h.history.ListSessions(ctx, userID, progression.SessionFilter{})
	if err != nil {
		return nil, err
	}

	skills := analytics.CalculateSkillScores(sessions, p.StreakDays, len(p.Badges))
	overall := skills.Overall()
	strengths, weaknesses := skills.StrengthsAndWeaknesses()
	avg, err := h.communityAverage(ctx)
	if err != nil {
		return nil, err
	}

	return &UserAnalytics{
		OverallScore:     overall,
		SkillRadar:       skills,
		Strengths:        strengths,
		Weaknesses:       weaknesses,
		CommunityAverage: avg,
		Percentile:       analytics.PercentileBucket(overall, avg),
		GamesPlayed:      len(sessions),
		TotalPoints:      p.TotalPoints,
		Level:            p.Level,
		StreakDays:       p.StreakDays,
	}, nil
}

// communityAverage scans the store behind a breaker. An unavailable or slow
// store, or an open breaker, degrades to the configured constant; any other
// error is returned.
func (h *AnalyticsHandler) communityAverage(ctx context.Context) (int, error) {
	if !h.config.ScanCommunity {
		return h.config.CommunityAverage, nil
	}
	avg, err := circuitbreaker.Call(ctx, h.breaker, h.config.CommunityAverage, func(ctx context.Context) (int, error) {
		standings, err := h.store.Standings(ctx, leaderboard.Query{Field: leaderboard.FieldTotalPoints})
		if err != nil {
			return 0, err
		}
		members := make([]analytics.CommunityMember, len(standings))
		for i, s := range standings {
			members[i] = analytics.CommunityMember{Level: s.Level, TotalPoints: s.TotalPoints}
		}
		return analytics.CommunityAverage(members), nil
	})
	switch {
	case err == nil:
		return avg, nil
	case shared.IsDegradable(err), circuitbreaker.IsRejected(err):
		h.log.Warn("community average degraded", logger.Err(err), logger.Int("fallback", avg))
		return avg, nil
	default:
		return 0, err
	}
}

// StreakCalendar marks the days of a month with a daily completion.
func (h *AnalyticsHandler) StreakCalendar(ctx context.Context, userID string, year, month int) (*analytics.StreakCalendar, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := analytics.ValidateMonth(year, month); err != nil {
		return nil, err
	}
	if _, err := h.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	from, to := timeutil.MonthBounds(year, time.Month(month))
	completions, err := h.history.ListCompletions(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	cal := analytics.BuildStreakCalendar(year, month, completions)
	return &cal, nil
}
