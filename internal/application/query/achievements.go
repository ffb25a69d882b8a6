package query

import (
	"context"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// AchievementHandler answers badge queries. It never unlocks anything.
type AchievementHandler struct {
	users  progression.Repository
	engine *achievement.Engine
}

// NewAchievementHandler creates an AchievementHandler.
func NewAchievementHandler(users progression.Repository, engine *achievement.Engine) *AchievementHandler {
	return &AchievementHandler{users: users, engine: engine}
}

// UserAchievements summarizes the user's unlocked badges.
func (h *AchievementHandler) UserAchievements(ctx context.Context, userID string) (*achievement.Summary, error) {
	p, err := h.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := h.engine.Summarize(p)
	return &s, nil
}

// Progress reports the distance to every badge.
func (h *AchievementHandler) Progress(ctx context.Context, userID string) ([]achievement.BadgeProgress, error) {
	p, err := h.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return h.engine.ProgressTowards(p), nil
}

// AllBadges lists the catalog.
func (h *AchievementHandler) AllBadges() []achievement.BadgeDefinition {
	return h.engine.Catalog().All()
}

// Badge looks up one definition. shared.ErrBadgeNotFound when unknown.
func (h *AchievementHandler) Badge(id string) (achievement.BadgeDefinition, error) {
	return h.engine.Catalog().Get(id)
}

func (h *AchievementHandler) load(ctx context.Context, userID string) (*progression.Progress, error) {
	if err := shared.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return h.users.GetByID(ctx, userID)
}
