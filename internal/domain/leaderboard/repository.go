package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Query selects standings from the aggregate store.
type Query struct {
	Field       Field
	CommunityID string // empty = everyone
	Limit       int    // <= 0 = no limit
}

// Store is the read side of the aggregate store used for rankings.
type Store interface {
	// Standings returns standings ordered by Compare(q.Field).
	Standings(ctx context.Context, q Query) ([]Standing, error)

	// CountAbove counts users whose field is strictly greater than points.
	CountAbove(ctx context.Context, f Field, points int, communityID string) (int, error)

	// Count counts users, optionally within a community.
	Count(ctx context.Context, communityID string) (int, error)
}

// PageCache stores rendered leaderboard pages for a short TTL.
type PageCache interface {
	GetPage(ctx context.Context, key string) ([]Entry, bool, error)
	SetPage(ctx context.Context, key string, entries []Entry, ttl time.Duration) error
	InvalidatePages(ctx context.Context) error
}

// RealtimeBoard is a write-behind projection of standings (sorted sets).
type RealtimeBoard interface {
	Upsert(ctx context.Context, s Standing) error
	Remove(ctx context.Context, userID string) error
	Rebuild(ctx context.Context, standings []Standing) error
	ResetField(ctx context.Context, f Field) error
}
