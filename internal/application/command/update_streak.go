package command

import (
	"context"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreakCommand applies the daily streak rule.
type UpdateStreakCommand struct {
	UserID string

	// Now overrides the handler clock when set.
	Now time.Time
}

// Validate validates the command.
func (c UpdateStreakCommand) Validate() error {
	return shared.ValidateUserID(c.UserID)
}

// UpdateStreakResult is the streak after the update.
type UpdateStreakResult struct {
	StreakDays int  `json:"streakDays"`
	Previous   int  `json:"previous"`
	WasReset   bool `json:"wasReset"`
	Changed    bool `json:"changed"`
}

// UpdateStreakHandler handles UpdateStreakCommand.
type UpdateStreakHandler struct {
	ledger    *Ledger
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewUpdateStreakHandler creates an UpdateStreakHandler.
func NewUpdateStreakHandler(ledger *Ledger, publisher shared.EventPublisher, log *logger.Logger, clock func() time.Time) *UpdateStreakHandler {
	publisher, log = orNop(publisher, log)
	return &UpdateStreakHandler{ledger: ledger, publisher: publisher, log: log, now: nowOr(clock)}
}

// Handle executes the command.
func (h *UpdateStreakHandler) Handle(ctx context.Context, cmd UpdateStreakCommand) (*UpdateStreakResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := cmd.Now
	if now.IsZero() {
		now = h.now()
	}

	p, u, err := h.ledger.UpdateStreak(ctx, cmd.UserID, now)
	if err != nil {
		return nil, err
	}

	if u.Changed() {
		h.log.Debug("streak updated", logger.UserID(p.UserID), logger.Int("streak_days", u.Current))
		publishAll(h.publisher, h.log, progressEvents(p, progression.LevelChange{}, u, nil, now))
	}

	return &UpdateStreakResult{
		StreakDays: p.StreakDays,
		Previous:   u.Previous,
		WasReset:   u.WasReset,
		Changed:    u.Changed(),
	}, nil
}
