package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Game Types
// ═══════════════════════════════════════════════════════════════════════════

// GameType identifies one of the quiz games.
type GameType string

const (
	GamePhishingDetective GameType = "phishing_detective"
	GamePasswordStrength  GameType = "password_strength"
	GameURLInspector      GameType = "url_inspector"
)

// AllGameTypes lists the game types in display order.
var AllGameTypes = []GameType{GamePhishingDetective, GamePasswordStrength, GameURLInspector}

func (g GameType) String() string { return string(g) }

// IsValid reports whether g is a known game type.
func (g GameType) IsValid() bool {
	switch g {
	case GamePhishingDetective, GamePasswordStrength, GameURLInspector:
		return true
	}
	return false
}

// Achievement counter names.
const (
	CounterPhishingDetected = "phishing_detected"
	CounterPasswordsCreated = "passwords_created"
	CounterURLsInspected    = "urls_inspected"
	CounterPerfectScores    = "perfect_scores"
	CounterGamesPlayed      = "games_played"
	CounterCommunityHelps   = "community_helps"
)

// AllCounters lists every achievement counter a new aggregate starts with.
var AllCounters = []string{
	CounterPhishingDetected,
	CounterPasswordsCreated,
	CounterURLsInspected,
	CounterPerfectScores,
	CounterGamesPlayed,
	CounterCommunityHelps,
}

// CounterKey returns the achievement counter fed by this game type.
func (g GameType) CounterKey() string {
	switch g {
	case GamePhishingDetective:
		return CounterPhishingDetected
	case GamePasswordStrength:
		return CounterPasswordsCreated
	case GameURLInspector:
		return CounterURLsInspected
	}
	return ""
}

// ParseGameType validates a raw game type.
func ParseGameType(raw string) (GameType, error) {
	g := GameType(strings.TrimSpace(raw))
	if !g.IsValid() {
		return "", ErrInvalidGameType
	}
	return g, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Difficulty
// ═══════════════════════════════════════════════════════════════════════════

// Difficulty is the challenge tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts easy/medium/hard; empty means easy.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return DifficultyEasy, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", WrapError("challenge", "ParseDifficulty", ErrInvalidArgument, "difficulty must be easy, medium or hard", nil)
}

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers and limits
// ═══════════════════════════════════════════════════════════════════════════

// ValidateUserID rejects empty or oversized user ids.
func ValidateUserID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 128 {
		return WrapError("progress", "Validate", ErrInvalidArgument, "user id must be 1-128 characters", nil)
	}
	return nil
}

// ClampLimit applies a default when limit <= 0 and caps it at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
