package command

import (
	"context"
	"time"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
	"github.com/cyberquest/cyberquest-api/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET POINTS COMMAND
// Zeroes the weekly or daily window across all users. Not atomic across the
// population: batches already done stay done and the next run finishes the rest.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultResetBatchSize is used when the handler is built without one.
const DefaultResetBatchSize = 500

// ResetPointsCommand names the window to reset.
type ResetPointsCommand struct {
	Period string
}

// ResetPointsResult reports how many aggregates changed.
type ResetPointsResult struct {
	Period   progression.Period `json:"period"`
	Reset    int                `json:"reset"`
	Duration time.Duration      `json:"duration"`
}

// ResetPointsHandler handles ResetPointsCommand.
type ResetPointsHandler struct {
	repo      progression.Repository
	batchSize int
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewResetPointsHandler creates a ResetPointsHandler.
func NewResetPointsHandler(
	repo progression.Repository,
	batchSize int,
	publisher shared.EventPublisher,
	log *logger.Logger,
	clock func() time.Time,
) *ResetPointsHandler {
	publisher, log = orNop(publisher, log)
	if batchSize <= 0 {
		batchSize = DefaultResetBatchSize
	}
	return &ResetPointsHandler{
		repo:      repo,
		batchSize: batchSize,
		retrier:   retry.BatchRetrier(),
		publisher: publisher,
		log:       log.With(logger.Component("reset_points")),
		now:       nowOr(clock),
	}
}

// Handle runs the reset. Transient store failures are retried; a retry only
// touches aggregates whose window is still non-zero.
func (h *ResetPointsHandler) Handle(ctx context.Context, cmd ResetPointsCommand) (*ResetPointsResult, error) {
	period, err := progression.ParsePeriod(cmd.Period)
	if err != nil {
		return nil, err
	}

	start := h.now()
	total := 0
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		n, err := h.repo.ResetPoints(ctx, period, h.batchSize)
		total += n
		if err != nil && shared.IsRetryable(err) {
			return retry.Retryable(err)
		}
		return err
	})
	if err != nil {
		h.log.Error("points reset incomplete",
			logger.String("period", string(period)),
			logger.Int("reset", total),
			logger.Err(err),
		)
		return nil, err
	}

	elapsed := h.now().Sub(start)
	h.log.Info("points reset",
		logger.String("period", string(period)),
		logger.Int("reset", total),
		logger.Latency(elapsed),
	)
	publishAll(h.publisher, h.log, []shared.Event{shared.NewPointsResetEvent(string(period), total, h.now().UTC())})

	return &ResetPointsResult{Period: period, Reset: total, Duration: elapsed}, nil
}
