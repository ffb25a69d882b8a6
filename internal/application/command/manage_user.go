package command

import (
	"context"
	"strings"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LIFECYCLE COMMANDS
// Accounts are authenticated upstream; these commands own only the aggregate.
// ══════════════════════════════════════════════════════════════════════════════

// CreateUserCommand creates a zeroed aggregate.
type CreateUserCommand struct {
	UserID      string
	Username    string
	DisplayName string
	CommunityID string
}

// UpdateProfileCommand changes display fields. Nil leaves a field as is.
type UpdateProfileCommand struct {
	UserID      string
	DisplayName *string
	CommunityID *string
}

// CommunityHelpCommand credits HelperID for helping RequesterID.
type CommunityHelpCommand struct {
	HelperID    string
	RequesterID string
}

// Validate validates the command.
func (c CommunityHelpCommand) Validate() error {
	if err := shared.ValidateUserID(c.HelperID); err != nil {
		return err
	}
	if err := shared.ValidateUserID(c.RequesterID); err != nil {
		return err
	}
	if strings.TrimSpace(c.HelperID) == strings.TrimSpace(c.RequesterID) {
		return shared.WrapError("community", "Help", shared.ErrInvalidArgument, "users cannot help themselves", nil)
	}
	return nil
}

// CommunityHelpResult is the helper's state after the credit.
type CommunityHelpResult struct {
	PointsEarned   int                           `json:"pointsEarned"`
	TotalPoints    int                           `json:"totalPoints"`
	CommunityHelps int                           `json:"communityHelps"`
	Level          int                           `json:"level"`
	NewBadges      []achievement.BadgeDefinition `json:"newBadges"`
}

// UserHandler handles the lifecycle commands.
type UserHandler struct {
	ledger    *Ledger
	engine    *achievement.Engine
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(
	ledger *Ledger,
	engine *achievement.Engine,
	publisher shared.EventPublisher,
	log *logger.Logger,
	clock func() time.Time,
) *UserHandler {
	publisher, log = orNop(publisher, log)
	return &UserHandler{
		ledger:    ledger,
		engine:    engine,
		publisher: publisher,
		log:       log,
		now:       nowOr(clock),
	}
}

// Create stores a new aggregate. Duplicate ids or usernames fail with
// shared.ErrUserAlreadyExists.
func (h *UserHandler) Create(ctx context.Context, cmd CreateUserCommand) (*progression.Progress, error) {
	p, err := progression.NewProgress(progression.NewProgressParams{
		UserID:      cmd.UserID,
		Username:    cmd.Username,
		DisplayName: cmd.DisplayName,
		CommunityID: cmd.CommunityID,
		Now:         h.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := h.ledger.Repository().Create(ctx, p); err != nil {
		return nil, err
	}

	h.log.Info("user created", logger.UserID(p.UserID), logger.String("username", p.Username))
	publishAll(h.publisher, h.log, []shared.Event{scoreUpdated(p, "signup", 0, 0, p.CreatedAt, "")})
	return p, nil
}

// Delete removes the aggregate and purges its records.
func (h *UserHandler) Delete(ctx context.Context, userID string) error {
	if err := shared.ValidateUserID(userID); err != nil {
		return err
	}
	if err := h.ledger.Repository().Delete(ctx, userID); err != nil {
		return err
	}

	h.log.Info("user deleted", logger.UserID(userID))
	publishAll(h.publisher, h.log, []shared.Event{shared.NewUserDeletedEvent(userID, h.now().UTC())})
	return nil
}

// UpdateProfile changes display name and community. Community ids are slugged.
func (h *UserHandler) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (*progression.Progress, error) {
	if err := shared.ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if cmd.DisplayName == nil && cmd.CommunityID == nil {
		return nil, shared.WrapError("progress", "UpdateProfile", shared.ErrInvalidArgument, "nothing to update", nil)
	}

	now := h.now()
	p, err := h.ledger.Mutate(ctx, cmd.UserID, "UpdateProfile", func(p *progression.Progress, _ *progression.Writes) error {
		return p.UpdateProfile(cmd.DisplayName, cmd.CommunityID, now)
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.publisher, h.log, []shared.Event{scoreUpdated(p, "profile", 0, 0, now.UTC(), "")})
	return p, nil
}

// RecordCommunityHelp awards the helper and evaluates badges in the same write.
// The requester must exist.
func (h *UserHandler) RecordCommunityHelp(ctx context.Context, cmd CommunityHelpCommand) (*CommunityHelpResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := h.ledger.Repository().GetByID(ctx, cmd.RequesterID); err != nil {
		return nil, err
	}

	now := h.now().UTC()
	var (
		change progression.LevelChange
		badges []achievement.BadgeDefinition
	)
	p, err := h.ledger.Mutate(ctx, cmd.HelperID, "CommunityHelp", func(p *progression.Progress, _ *progression.Writes) error {
		change = p.RecordCommunityHelp(now)
		badges = h.engine.Unlock(p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("community help recorded",
		logger.UserID(p.UserID),
		logger.String("requester_id", cmd.RequesterID),
		logger.Points(progression.PointsCommunityHelp),
	)
	events := []shared.Event{scoreUpdated(p, SourceCommunityHelp, progression.PointsCommunityHelp, 0, now, "")}
	events = append(events, progressEvents(p, change, progression.StreakUpdate{}, badges, now)...)
	publishAll(h.publisher, h.log, events)

	if badges == nil {
		badges = []achievement.BadgeDefinition{}
	}
	return &CommunityHelpResult{
		PointsEarned:   progression.PointsCommunityHelp,
		TotalPoints:    p.TotalPoints,
		CommunityHelps: p.Counter(shared.CounterCommunityHelps),
		Level:          p.Level,
		NewBadges:      badges,
	}, nil
}
