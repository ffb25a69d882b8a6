package command

import (
	"context"
	"errors"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK ACHIEVEMENTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CheckAchievementsCommand evaluates every locked badge for a user.
type CheckAchievementsCommand struct {
	UserID string
}

// CheckAchievementsHandler handles CheckAchievementsCommand.
type CheckAchievementsHandler struct {
	ledger    *Ledger
	engine    *achievement.Engine
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewCheckAchievementsHandler creates a CheckAchievementsHandler.
func NewCheckAchievementsHandler(
	ledger *Ledger,
	engine *achievement.Engine,
	publisher shared.EventPublisher,
	log *logger.Logger,
	clock func() time.Time,
) *CheckAchievementsHandler {
	publisher, log = orNop(publisher, log)
	return &CheckAchievementsHandler{ledger: ledger, engine: engine, publisher: publisher, log: log, now: nowOr(clock)}
}

// Handle appends newly earned badges in one write and returns them. With
// nothing new it commits nothing and returns an empty slice.
func (h *CheckAchievementsHandler) Handle(ctx context.Context, cmd CheckAchievementsCommand) ([]achievement.BadgeDefinition, error) {
	if err := shared.ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}

	var unlocked []achievement.BadgeDefinition
	now := h.now().UTC()
	p, err := h.ledger.Mutate(ctx, cmd.UserID, "CheckAchievements", func(p *progression.Progress, _ *progression.Writes) error {
		unlocked = h.engine.Unlock(p)
		if len(unlocked) == 0 {
			return progression.ErrNoChange
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, progression.ErrNoChange) {
		return nil, err
	}

	if len(unlocked) == 0 {
		return []achievement.BadgeDefinition{}, nil
	}
	for _, b := range unlocked {
		h.log.Info("badge unlocked", logger.UserID(p.UserID), logger.BadgeID(b.ID))
	}
	publishAll(h.publisher, h.log, progressEvents(p, progression.LevelChange{}, progression.StreakUpdate{}, unlocked, now))
	return unlocked, nil
}
