package eventhandler

import (
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/circuitbreaker"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ActivityLogger writes milestone events to the structured log.
type ActivityLogger struct {
	log *logger.Logger
}

// NewActivityLogger creates an ActivityLogger.
func NewActivityLogger(log *logger.Logger) *ActivityLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityLogger{log: log.With(logger.Component("activity"))}
}

// Register subscribes to the milestone events.
func (a *ActivityLogger) Register(bus shared.EventSubscriber) error {
	for _, et := range []shared.EventType{
		shared.EventLevelUp,
		shared.EventBadgeUnlocked,
		shared.EventStreakUpdated,
		shared.EventDailyCompleted,
		shared.EventUserDeleted,
		shared.EventPointsReset,
	} {
		if err := bus.Subscribe(et, a.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle logs one event.
func (a *ActivityLogger) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case shared.LevelUpEvent:
		a.log.Info("level up", append(fields, logger.UserID(e.AggregateID()), logger.Int("old_level", e.OldLevel), logger.UserLevel(e.NewLevel), logger.String("title", e.Title))...)
	case shared.BadgeUnlockedEvent:
		a.log.Info("badge unlocked", append(fields, logger.UserID(e.AggregateID()), logger.BadgeID(e.BadgeID), logger.String("rarity", e.Rarity))...)
	case shared.StreakUpdatedEvent:
		if e.WasReset {
			a.log.Debug("streak reset", append(fields, logger.UserID(e.AggregateID()), logger.Int("previous", e.Previous))...)
			return nil
		}
		a.log.Debug("streak extended", append(fields, logger.UserID(e.AggregateID()), logger.Int("streak_days", e.Current))...)
	case shared.DailyCompletedEvent:
		a.log.Info("daily challenge completed", append(fields, logger.UserID(e.AggregateID()), logger.Date(e.Date), logger.Bool("correct", e.Correct))...)
	case shared.UserDeletedEvent:
		a.log.Info("user deleted", append(fields, logger.UserID(e.AggregateID()))...)
	case shared.PointsResetEvent:
		a.log.Info("points reset", append(fields, logger.String("period", e.Period), logger.Int("reset", e.Reset))...)
	default:
		a.log.Debug("event", append(fields, logger.String("aggregate_id", event.AggregateID()))...)
	}
	return nil
}

func periodOf(e shared.PointsResetEvent) progression.Period {
	if e.Period == string(progression.PeriodDaily) {
		return progression.PeriodDaily
	}
	return progression.PeriodWeekly
}

func logStateChange(log *logger.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
}
