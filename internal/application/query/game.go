package query

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAME QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Limits for session history.
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// ChallengeSet is a sampled round of challenges without answers.
type ChallengeSet struct {
	GameType   shared.GameType             `json:"gameType"`
	Difficulty shared.Difficulty           `json:"difficulty"`
	Challenges []challenge.PublicChallenge `json:"challenges"`
}

// SessionView is one past submission.
type SessionView struct {
	ID             string                       `json:"id"`
	GameType       shared.GameType              `json:"gameType"`
	Results        []progression.QuestionResult `json:"results"`
	CorrectCount   int                          `json:"correctCount"`
	TotalQuestions int                          `json:"totalQuestions"`
	Accuracy       float64                      `json:"accuracy"`
	PointsEarned   int                          `json:"pointsEarned"`
	XPEarned       int                          `json:"xpEarned"`
	CompletedAt    time.Time                    `json:"completedAt"`
}

// GameTypeStats aggregates the sessions of one game type.
type GameTypeStats struct {
	Played         int `json:"played"`
	TotalCorrect   int `json:"totalCorrect"`
	TotalQuestions int `json:"totalQuestions"`
}

// GameStats aggregates every session of a user.
type GameStats struct {
	TotalGames      int                                `json:"totalGames"`
	ByType          map[shared.GameType]*GameTypeStats `json:"byType"`
	AverageAccuracy float64                            `json:"averageAccuracy"`
}

// UserStats combines the profile, badges and game statistics.
type UserStats struct {
	User         UserView            `json:"user"`
	Achievements achievement.Summary `json:"achievements"`
	Games        GameStats           `json:"games"`
}

// GameHandler answers challenge and session queries.
type GameHandler struct {
	users   progression.Repository
	history progression.HistoryRepository
	catalog *challenge.Catalog
	engine  *achievement.Engine
	now     func() time.Time
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(
	users progression.Repository,
	history progression.HistoryRepository,
	catalog *challenge.Catalog,
	engine *achievement.Engine,
	clock func() time.Time,
) *GameHandler {
	return &GameHandler{users: users, history: history, catalog: catalog, engine: engine, now: nowOr(clock)}
}

// Challenges samples count challenges of one difficulty. A zero seed draws a
// fresh selection; any other seed repeats the same one.
func (h *GameHandler) Challenges(gameType, difficulty string, count int, seed uint64) (*ChallengeSet, error) {
	gt, err := shared.ParseGameType(gameType)
	if err != nil {
		return nil, err
	}
	diff, err := shared.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	pool, err := h.catalog.Pool(gt)
	if err != nil {
		return nil, err
	}

	if seed == 0 {
		seed = uint64(h.now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	return &ChallengeSet{
		GameType:   gt,
		Difficulty: diff,
		Challenges: challenge.PublicAll(challenge.Sample(pool, diff, count, rng)),
	}, nil
}

// History returns the user's sessions, newest first.
func (h *GameHandler) History(ctx context.Context, userID, gameType string, limit int) ([]SessionView, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	filter := progression.SessionFilter{Limit: shared.ClampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)}
	if gameType != "" {
		gt, err := shared.ParseGameType(gameType)
		if err != nil {
			return nil, err
		}
		filter.GameType = gt
	}
	if _, err := h.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	sessions, err := h.history.ListSessions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, len(sessions))
	for i, s := range sessions {
		out[i] = sessionView(s)
	}
	return out, nil
}

// Stats aggregates every session of the user.
func (h *GameHandler) Stats(ctx context.Context, userID string) (*UserStats, error) {
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

	return &UserStats{
		User:         NewUserView(p),
		Achievements: h.engine.Summarize(p),
		Games:        gameStats(sessions),
	}, nil
}

func gameStats(sessions []progression.GameSession) GameStats {
	stats := GameStats{
		TotalGames: len(sessions),
		ByType:     make(map[shared.GameType]*GameTypeStats, len(shared.AllGameTypes)),
	}
	for _, gt := range shared.AllGameTypes {
		stats.ByType[gt] = &GameTypeStats{}
	}

	var accuracy float64
	for _, s := range sessions {
		t, ok := stats.ByType[s.GameType]
		if !ok {
			t = &GameTypeStats{}
			stats.ByType[s.GameType] = t
		}
		t.Played++
		t.TotalCorrect += s.CorrectCount
		t.TotalQuestions += s.TotalQuestions
		accuracy += s.Accuracy
	}
	if len(sessions) > 0 {
		stats.AverageAccuracy = progression.RoundAccuracy(accuracy / float64(len(sessions)))
	}
	return stats
}

func sessionView(s progression.GameSession) SessionView {
	return SessionView{
		ID:             s.ID,
		GameType:       s.GameType,
		Results:        s.Results,
		CorrectCount:   s.CorrectCount,
		TotalQuestions: s.TotalQuestions,
		Accuracy:       s.Accuracy,
		PointsEarned:   s.PointsEarned,
		XPEarned:       s.XPEarned,
		CompletedAt:    s.CompletedAt,
	}
}
