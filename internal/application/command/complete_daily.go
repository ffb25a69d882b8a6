package command

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/challenge"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE DAILY CHALLENGE COMMAND
// The completion check, the completion record and the reward commit together.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteDailyCommand answers today's daily challenge.
type CompleteDailyCommand struct {
	UserID    string
	Answer    string
	TimeTaken int

	CorrelationID string
}

// Validate validates the command.
func (c CompleteDailyCommand) Validate() error {
	if err := shared.ValidateUserID(c.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Answer) == "" {
		return shared.WrapError("daily", "Complete", shared.ErrInvalidArgument, "answer is required", nil)
	}
	if c.TimeTaken < 0 {
		return shared.WrapError("daily", "Complete", shared.ErrInvalidArgument, "timeTaken must not be negative", nil)
	}
	return nil
}

// CompleteDailyResult reveals the answer and the rewards.
type CompleteDailyResult struct {
	Date          string                        `json:"date"`
	ChallengeID   string                        `json:"challengeId"`
	Correct       bool                          `json:"correct"`
	CorrectAnswer string                        `json:"correctAnswer"`
	Explanation   string                        `json:"explanation"`
	RedFlags      []string                      `json:"redFlags"`
	PointsEarned  int                           `json:"pointsEarned"`
	XPEarned      int                           `json:"xpEarned"`
	TotalPoints   int                           `json:"totalPoints"`
	Level         int                           `json:"level"`
	StreakDays    int                           `json:"streakDays"`
	NewBadges     []achievement.BadgeDefinition `json:"newBadges"`
}

// CompleteDailyHandler handles CompleteDailyCommand.
type CompleteDailyHandler struct {
	ledger    *Ledger
	catalog   *challenge.Catalog
	engine    *achievement.Engine
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewCompleteDailyHandler creates a CompleteDailyHandler.
func NewCompleteDailyHandler(
	ledger *Ledger,
	catalog *challenge.Catalog,
	engine *achievement.Engine,
	publisher shared.EventPublisher,
	log *logger.Logger,
	clock func() time.Time,
) *CompleteDailyHandler {
	publisher, log = orNop(publisher, log)
	return &CompleteDailyHandler{
		ledger:    ledger,
		catalog:   catalog,
		engine:    engine,
		publisher: publisher,
		log:       log,
		now:       nowOr(clock),
	}
}

// Handle grades the answer and commits the completion once per user and day.
// A second completion on the same day fails with shared.ErrAlreadyCompleted,
// whether it is caught by the aggregate's date or by the store's unique key.
func (h *CompleteDailyHandler) Handle(ctx context.Context, cmd CompleteDailyCommand) (*CompleteDailyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now().UTC()
	today := progression.Today(now)
	ch, _, err := h.catalog.ForDate(today)
	if err != nil {
		return nil, err
	}

	correct := ch.IsCorrect(cmd.Answer)
	points, xp := progression.DailyReward(correct)
	completion := progression.DailyCompletion{
		ID:           uuid.NewString(),
		UserID:       cmd.UserID,
		Date:         today,
		ChallengeID:  ch.ID,
		Answer:       strings.TrimSpace(cmd.Answer),
		Correct:      correct,
		PointsEarned: points,
		XPEarned:     xp,
		TimeTaken:    cmd.TimeTaken,
		CompletedAt:  now,
	}

	var (
		change progression.LevelChange
		streak progression.StreakUpdate
		badges []achievement.BadgeDefinition
	)
	p, err := h.ledger.Mutate(ctx, cmd.UserID, "CompleteDaily", func(p *progression.Progress, w *progression.Writes) error {
		if p.CompletedDailyOn(today) {
			return shared.ErrAlreadyCompleted
		}
		streak = p.ApplyStreak(now)
		var err error
		change, err = p.CompleteDaily(today, points, xp, now)
		if err != nil {
			return err
		}
		badges = h.engine.Unlock(p)
		w.AddCompletion(completion)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("daily challenge completed",
		logger.UserID(p.UserID),
		logger.Date(today),
		logger.Bool("correct", correct),
		logger.Points(points),
	)

	events := []shared.Event{
		shared.NewDailyCompletedEvent(p.UserID, today, ch.ID, correct, now),
	}
	if points > 0 {
		events = append(events, scoreUpdated(p, SourceDailyChallenge, points, xp, now, cmd.CorrelationID))
	}
	events = append(events, progressEvents(p, change, streak, badges, now)...)
	publishAll(h.publisher, h.log, events)

	redFlags := ch.RedFlags
	if redFlags == nil {
		redFlags = []string{}
	}
	if badges == nil {
		badges = []achievement.BadgeDefinition{}
	}
	return &CompleteDailyResult{
		Date:          today,
		ChallengeID:   ch.ID,
		Correct:       correct,
		CorrectAnswer: ch.CorrectAnswer,
		Explanation:   ch.Explanation,
		RedFlags:      redFlags,
		PointsEarned:  points,
		XPEarned:      xp,
		TotalPoints:   p.TotalPoints,
		Level:         p.Level,
		StreakDays:    p.StreakDays,
		NewBadges:     badges,
	}, nil
}
