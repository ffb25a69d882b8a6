package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errConflict)
		}
		return nil
	}, fast(WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errConflict
	}, fast(WithMaxAttempts(4), WithRetryIf(func(err error) bool { return errors.Is(err, errConflict) }))...)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, errConflict)

	var ee *ExhaustedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 4, ee.Attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errConflict)
	}, fast(WithMaxAttempts(5))...)

	assert.Equal(t, 1, calls)
	assert.Equal(t, errConflict, err)
	assert.False(t, IsExhausted(err))
}

func TestDo_NonRetryablePassesThrough(t *testing.T) {
	other := errors.New("not found")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return other
	}, fast(WithMaxAttempts(5))...)

	assert.Equal(t, 1, calls)
	assert.Equal(t, other, err)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	n, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestDelayIsCapped(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(50*time.Millisecond), WithJitter(0))
	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 40*time.Millisecond, r.delay(3))
	assert.Equal(t, 50*time.Millisecond, r.delay(10))
}

func TestLedgerRetrier_OptionsOverridePreset(t *testing.T) {
	var retried []int
	r := LedgerRetrier(3, func(err error) bool { return errors.Is(err, errConflict) },
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }),
	)
	assert.Equal(t, 3, r.MaxAttempts())

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errConflict
	})

	assert.True(t, IsExhausted(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}
