package command

import (
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/achievement"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// Score sources carried by ScoreUpdatedEvent.
const (
	SourceDailyChallenge = "daily_challenge"
	SourceCommunityHelp  = "community_help"
)

// scoreUpdated snapshots the committed aggregate for projections.
func scoreUpdated(p *progression.Progress, source string, points, xp int, at time.Time, correlationID string) shared.ScoreUpdatedEvent {
	base := shared.NewBaseEvent(shared.EventScoreUpdated, p.UserID, at)
	if correlationID != "" {
		base = base.WithCorrelationID(correlationID)
	}
	return shared.ScoreUpdatedEvent{
		BaseEvent:    base,
		Source:       source,
		PointsEarned: points,
		XPEarned:     xp,
		TotalPoints:  p.TotalPoints,
		WeeklyPoints: p.WeeklyPoints,
		DailyPoints:  p.DailyPoints,
		Level:        p.Level,
		Username:     p.Username,
		DisplayName:  p.DisplayName,
		CommunityID:  p.CommunityID,
		BadgeCount:   len(p.Badges),
		Version:      p.Version,
	}
}

// progressEvents builds the events that follow a committed write.
func progressEvents(
	p *progression.Progress,
	change progression.LevelChange,
	streak progression.StreakUpdate,
	badges []achievement.BadgeDefinition,
	at time.Time,
) []shared.Event {
	var events []shared.Event
	if streak.Changed() {
		events = append(events, shared.NewStreakUpdatedEvent(p.UserID, streak.Previous, streak.Current, streak.WasReset, at))
	}
	if change.LeveledUp() {
		events = append(events, shared.NewLevelUpEvent(p.UserID, change.Old, change.New, progression.DefaultLevelTable.Title(change.New), at))
	}
	for _, b := range badges {
		events = append(events, shared.NewBadgeUnlockedEvent(p.UserID, b.ID, b.Name, string(b.Rarity), at))
	}
	return events
}

// publishAll hands events to the bus. Publishing happens after commit, so a
// failure is logged and never fails the command.
func publishAll(pub shared.EventPublisher, log *logger.Logger, events []shared.Event) {
	for _, e := range events {
		if err := pub.Publish(e); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// orNop defaults optional collaborators.
func orNop(pub shared.EventPublisher, log *logger.Logger) (shared.EventPublisher, *logger.Logger) {
	if pub == nil {
		pub = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return pub, log
}

func nowOr(clock func() time.Time) func() time.Time {
	if clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return clock
}
