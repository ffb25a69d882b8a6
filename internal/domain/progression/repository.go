package progression

import (
	"context"
	"errors"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoChange can be returned by an UpdateFunc to end the transaction without
// writing. Update then returns the unchanged aggregate and a nil error.
var ErrNoChange = errors.New("no change")

// Writes collects append-only records produced inside an Update.
type Writes struct {
	Sessions    []GameSession
	Completions []DailyCompletion
}

// AddSession appends a session record.
func (w *Writes) AddSession(s GameSession) { w.Sessions = append(w.Sessions, s) }

// AddCompletion appends a daily completion record.
func (w *Writes) AddCompletion(c DailyCompletion) { w.Completions = append(w.Completions, c) }

// UpdateFunc mutates the aggregate copy handed in by the store.
// It may run more than once and must not have side effects outside p and w.
type UpdateFunc func(p *Progress, w *Writes) error

// Repository is the single writer of Progress aggregates.
type Repository interface {
	// Create stores a new aggregate. shared.ErrUserAlreadyExists on a
	// duplicate user id or username.
	Create(ctx context.Context, p *Progress) error

	// GetByID returns a snapshot. shared.ErrUserNotFound when missing.
	GetByID(ctx context.Context, userID string) (*Progress, error)

	// Update runs fn against the current aggregate inside one transaction and
	// commits the aggregate together with w. A conflicting concurrent writer
	// yields an error of kind shared.ErrConcurrentModification, a violated
	// (user, date) completion key yields shared.ErrAlreadyCompleted.
	Update(ctx context.Context, userID string, fn UpdateFunc) (*Progress, error)

	// Delete removes the aggregate with its sessions and completions.
	Delete(ctx context.Context, userID string) error

	// ResetPoints zeroes the period's window in batches. It returns the number
	// of aggregates changed; a failure mid-way keeps the batches already done.
	ResetPoints(ctx context.Context, period Period, batchSize int) (int, error)
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	GameType shared.GameType // empty = all
	Limit    int
}

// HistoryRepository reads the append-only records.
type HistoryRepository interface {
	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context, userID string, f SessionFilter) ([]GameSession, error)

	// ListCompletions returns completions with from <= date < to, oldest first.
	ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]DailyCompletion, error)

	// HasCompletion reports whether a completion exists for (userID, date).
	HasCompletion(ctx context.Context, userID, date string) (bool, error)
}

// NotFound wraps a store miss as shared.ErrUserNotFound.
func NotFound(userID string) error {
	return shared.WrapError("progress", "Find", shared.ErrUserNotFound, "user not found", errors.New(userID))
}

// Conflict reports a commit that lost to a concurrent writer. The ledger
// retries it.
func Conflict(userID string) error {
	return shared.WrapError("progress", "Commit", shared.ErrConcurrentModification, "aggregate changed during transaction", errors.New(userID))
}

// DuplicateCompletion reports a violated (user, date) completion key.
func DuplicateCompletion(userID, date string) error {
	return shared.WrapError("daily", "Complete", shared.ErrAlreadyCompleted, "daily challenge already completed today", errors.New(userID+"@"+date))
}
