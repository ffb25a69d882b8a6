// Package command contains write operations (CQRS - Commands).
// Every write to a progress aggregate goes through Ledger.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
	"github.com/cyberquest/cyberquest-api/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION LEDGER
// Runs read-modify-write transactions on one aggregate with bounded retries.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerConfig tunes the ledger.
type LedgerConfig struct {
	// MaxAttempts bounds transaction attempts, the first one included.
	MaxAttempts int

	// StoreTimeout caps each attempt.
	StoreTimeout time.Duration
}

// DefaultLedgerConfig returns default configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts:  5,
		StoreTimeout: 3 * time.Second,
	}
}

// Ledger is the only writer of progress aggregates.
type Ledger struct {
	repo    progression.Repository
	retrier *retry.Retrier
	timeout time.Duration
	log     *logger.Logger
}

// NewLedger creates a Ledger.
func NewLedger(repo progression.Repository, config LedgerConfig, log *logger.Logger) *Ledger {
	def := DefaultLedgerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = def.StoreTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	l := &Ledger{
		repo:    repo,
		timeout: config.StoreTimeout,
		log:     log.With(logger.Component("ledger")),
	}
	l.retrier = retry.LedgerRetrier(config.MaxAttempts, shared.IsRetryable,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			l.log.Debug("retrying transaction",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	return l
}

// Repository exposes the underlying store for reads.
func (l *Ledger) Repository() progression.Repository { return l.repo }

// Mutate runs fn in a transaction on userID's aggregate and returns the
// committed state. fn may run several times; it must reset anything it
// captures. Conflicts and timeouts are retried; running out of attempts
// yields shared.ErrConcurrencyConflict or shared.ErrStoreTimeout.
func (l *Ledger) Mutate(ctx context.Context, userID, op string, fn progression.UpdateFunc) (*progression.Progress, error) {
	var out *progression.Progress
	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		p, err := l.repo.Update(attemptCtx, userID, fn)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return shared.WrapError("store", op, shared.ErrStoreTimeout, "store operation timed out", err)
			}
			return err
		}
		out = p
		return nil
	})
	if err == nil {
		return out, nil
	}

	if retry.IsExhausted(err) {
		l.log.Warn("transaction gave up",
			logger.UserID(userID),
			logger.Operation(op),
			logger.Err(err),
		)
		if errors.Is(err, shared.ErrTimeout) {
			return nil, shared.WrapError("store", op, shared.ErrStoreTimeout, "store operation timed out", err)
		}
		return nil, shared.WrapError("progress", op, shared.ErrConcurrencyConflict, "could not commit update after retries", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, shared.WrapError("store", op, shared.ErrStoreTimeout, "store operation timed out", err)
	}
	return nil, err
}

// ApplySubmission folds one scored submission into the aggregate: points to
// every window, XP with the level recomputed, the game-type counter and
// games_played incremented.
func (l *Ledger) ApplySubmission(ctx context.Context, userID string, d progression.SubmissionDelta, now time.Time) (*progression.Progress, progression.LevelChange, error) {
	var change progression.LevelChange
	p, err := l.Mutate(ctx, userID, "ApplySubmission", func(p *progression.Progress, _ *progression.Writes) error {
		var err error
		change, err = p.ApplySubmission(d, now)
		return err
	})
	if err != nil {
		return nil, progression.LevelChange{}, err
	}
	return p, change, nil
}

// UpdateStreak applies the streak rule for now.
func (l *Ledger) UpdateStreak(ctx context.Context, userID string, now time.Time) (*progression.Progress, progression.StreakUpdate, error) {
	var update progression.StreakUpdate
	p, err := l.Mutate(ctx, userID, "UpdateStreak", func(p *progression.Progress, _ *progression.Writes) error {
		update = p.ApplyStreak(now)
		return nil
	})
	if err != nil {
		return nil, progression.StreakUpdate{}, err
	}
	return p, update, nil
}
