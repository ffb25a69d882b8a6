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
// SUBMIT GAME COMMAND
// Grades a game, scores it and commits the aggregate, the session record and
// any unlocked badges in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitGameCommand contains one game submission.
type SubmitGameCommand struct {
	UserID   string
	GameType string
	Answers  []challenge.Answer

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitGameCommand) Validate() error {
	if err := shared.ValidateUserID(c.UserID); err != nil {
		return err
	}
	if _, err := shared.ParseGameType(c.GameType); err != nil {
		return err
	}
	for _, a := range c.Answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			return shared.WrapError("game", "Submit", shared.ErrInvalidArgument, "every answer needs a question id", nil)
		}
	}
	return nil
}

// SubmitGameResult is returned to the player.
type SubmitGameResult struct {
	SessionID   string                        `json:"sessionId"`
	GameType    shared.GameType               `json:"gameType"`
	Results     []progression.QuestionResult  `json:"results"`
	Score       progression.Score             `json:"score"`
	TotalPoints int                           `json:"totalPoints"`
	XP          int                           `json:"xp"`
	Level       int                           `json:"level"`
	LevelTitle  string                        `json:"levelTitle"`
	LeveledUp   bool                          `json:"leveledUp"`
	StreakDays  int                           `json:"streakDays"`
	NewBadges   []achievement.BadgeDefinition `json:"newBadges"`
	CompletedAt time.Time                     `json:"completedAt"`
}

// SubmitGameHandler handles SubmitGameCommand.
type SubmitGameHandler struct {
	ledger    *Ledger
	catalog   *challenge.Catalog
	engine    *achievement.Engine
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewSubmitGameHandler creates a SubmitGameHandler.
func NewSubmitGameHandler(
	ledger *Ledger,
	catalog *challenge.Catalog,
	engine *achievement.Engine,
	publisher shared.EventPublisher,
	log *logger.Logger,
	clock func() time.Time,
) *SubmitGameHandler {
	publisher, log = orNop(publisher, log)
	return &SubmitGameHandler{
		ledger:    ledger,
		catalog:   catalog,
		engine:    engine,
		publisher: publisher,
		log:       log,
		now:       nowOr(clock),
	}
}

// Handle executes the submission.
func (h *SubmitGameHandler) Handle(ctx context.Context, cmd SubmitGameCommand) (*SubmitGameResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	gt, _ := shared.ParseGameType(cmd.GameType)

	results, correct, err := h.catalog.Grade(gt, cmd.Answers)
	if err != nil {
		return nil, err
	}
	score, err := progression.Calculate(correct, len(results), gt)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	session := progression.GameSession{
		ID:             uuid.NewString(),
		UserID:         cmd.UserID,
		GameType:       gt,
		Results:        results,
		CorrectCount:   score.CorrectCount,
		TotalQuestions: score.TotalQuestions,
		Accuracy:       score.Accuracy,
		PointsEarned:   score.Points,
		XPEarned:       score.XP,
		CompletedAt:    now,
	}

	var (
		change progression.LevelChange
		streak progression.StreakUpdate
		badges []achievement.BadgeDefinition
	)
	p, err := h.ledger.Mutate(ctx, cmd.UserID, "SubmitGame", func(p *progression.Progress, w *progression.Writes) error {
		streak = p.ApplyStreak(now)
		var err error
		change, err = p.ApplySubmission(progression.SubmissionDelta{
			GameType:     gt,
			PointsEarned: score.Points,
			XPEarned:     score.XP,
			CorrectCount: score.CorrectCount,
			Perfect:      score.Perfect,
		}, now)
		if err != nil {
			return err
		}
		badges = h.engine.Unlock(p)
		w.AddSession(session)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("game submitted",
		logger.UserID(p.UserID),
		logger.GameType(string(gt)),
		logger.Points(score.Points),
		logger.XPAmount(score.XP),
		logger.UserLevel(p.Level),
	)

	events := []shared.Event{scoreUpdated(p, string(gt), score.Points, score.XP, now, cmd.CorrelationID)}
	events = append(events, progressEvents(p, change, streak, badges, now)...)
	publishAll(h.publisher, h.log, events)

	if badges == nil {
		badges = []achievement.BadgeDefinition{}
	}
	return &SubmitGameResult{
		SessionID:   session.ID,
		GameType:    gt,
		Results:     results,
		Score:       score,
		TotalPoints: p.TotalPoints,
		XP:          p.XP,
		Level:       p.Level,
		LevelTitle:  progression.DefaultLevelTable.Title(p.Level),
		LeveledUp:   change.LeveledUp(),
		StreakDays:  p.StreakDays,
		NewBadges:   badges,
		CompletedAt: now,
	}, nil
}
