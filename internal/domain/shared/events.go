package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserDeleted EventType = "user.deleted"

	EventScoreUpdated  EventType = "progress.score_updated"
	EventLevelUp       EventType = "progress.level_up"
	EventStreakUpdated EventType = "progress.streak_updated"

	EventBadgeUnlocked EventType = "achievement.badge_unlocked"

	EventDailyCompleted EventType = "daily.completed"

	EventPointsReset EventType = "leaderboard.points_reset"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a base event stamped at the given instant.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ScoreUpdatedEvent is emitted after any committed change to a user's point totals.
type ScoreUpdatedEvent struct {
	BaseEvent
	Source       string `json:"source"` // game type, "daily_challenge", "community_help"
	PointsEarned int    `json:"points_earned"`
	XPEarned     int    `json:"xp_earned"`
	TotalPoints  int    `json:"total_points"`
	WeeklyPoints int    `json:"weekly_points"`
	DailyPoints  int    `json:"daily_points"`
	Level        int    `json:"level"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	CommunityID  string `json:"community_id,omitempty"`
	BadgeCount   int    `json:"badge_count"`
	// Version is the aggregate version the snapshot was taken at. Zero when unknown.
	Version int64 `json:"version,omitempty"`
}

func (e ScoreUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"version":       e.Version,
		"source":        e.Source,
		"points_earned": e.PointsEarned,
		"xp_earned":     e.XPEarned,
		"total_points":  e.TotalPoints,
		"weekly_points": e.WeeklyPoints,
		"daily_points":  e.DailyPoints,
		"level":         e.Level,
	}
}

// LevelUpEvent is emitted when a commit moves a user to a higher level.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

func (e LevelUpEvent) Payload() map[string]any {
	return map[string]any{"old_level": e.OldLevel, "new_level": e.NewLevel, "title": e.Title}
}

func NewLevelUpEvent(userID string, oldLevel, newLevel int, title string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
	}
}

// StreakUpdatedEvent is emitted when the streak counter changed.
type StreakUpdatedEvent struct {
	BaseEvent
	Previous int  `json:"previous"`
	Current  int  `json:"current"`
	WasReset bool `json:"was_reset"`
}

func (e StreakUpdatedEvent) Payload() map[string]any {
	return map[string]any{"previous": e.Previous, "current": e.Current, "was_reset": e.WasReset}
}

func NewStreakUpdatedEvent(userID string, previous, current int, wasReset bool, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID, at),
		Previous:  previous,
		Current:   current,
		WasReset:  wasReset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement / Daily Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted once per newly unlocked badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	BadgeID string `json:"badge_id"`
	Name    string `json:"name"`
	Rarity  string `json:"rarity"`
}

func (e BadgeUnlockedEvent) Payload() map[string]any {
	return map[string]any{"badge_id": e.BadgeID, "name": e.Name, "rarity": e.Rarity}
}

func NewBadgeUnlockedEvent(userID, badgeID, name, rarity string, at time.Time) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, userID, at),
		BadgeID:   badgeID,
		Name:      name,
		Rarity:    rarity,
	}
}

// DailyCompletedEvent is emitted when a user finishes the daily challenge.
type DailyCompletedEvent struct {
	BaseEvent
	Date        string `json:"date"`
	ChallengeID string `json:"challenge_id"`
	Correct     bool   `json:"correct"`
}

func (e DailyCompletedEvent) Payload() map[string]any {
	return map[string]any{"date": e.Date, "challenge_id": e.ChallengeID, "correct": e.Correct}
}

func NewDailyCompletedEvent(userID, date, challengeID string, correct bool, at time.Time) DailyCompletedEvent {
	return DailyCompletedEvent{
		BaseEvent:   NewBaseEvent(EventDailyCompleted, userID, at),
		Date:        date,
		ChallengeID: challengeID,
		Correct:     correct,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// UserDeletedEvent is emitted after an aggregate and its records were purged.
type UserDeletedEvent struct {
	BaseEvent
}

func (e UserDeletedEvent) Payload() map[string]any { return map[string]any{} }

func NewUserDeletedEvent(userID string, at time.Time) UserDeletedEvent {
	return UserDeletedEvent{BaseEvent: NewBaseEvent(EventUserDeleted, userID, at)}
}

// PointsResetEvent is emitted after a periodic reset pass.
type PointsResetEvent struct {
	BaseEvent
	Period string `json:"period"`
	Reset  int    `json:"reset"`
}

func (e PointsResetEvent) Payload() map[string]any {
	return map[string]any{"period": e.Period, "reset": e.Reset}
}

func NewPointsResetEvent(period string, reset int, at time.Time) PointsResetEvent {
	return PointsResetEvent{
		BaseEvent: NewBaseEvent(EventPointsReset, "leaderboard:"+period, at),
		Period:    period,
		Reset:     reset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Transport
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
