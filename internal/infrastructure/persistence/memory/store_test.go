package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return New() })
}

func TestUpdate_DetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Create(ctx, storetest.NewUser(t, "u-1", "alice", "")))

	_, err := s.Update(ctx, "u-1", func(p *progression.Progress, _ *progression.Writes) error {
		// Another writer commits while this transaction is open.
		_, inner := s.Update(ctx, "u-1", func(q *progression.Progress, _ *progression.Writes) error {
			q.TotalPoints += 10
			return nil
		})
		require.NoError(t, inner)
		p.TotalPoints += 10
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.True(t, shared.IsRetryable(err))

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalPoints, "only the committed writer is visible")
}

func TestGetByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Create(ctx, storetest.NewUser(t, "u-1", "alice", "")))

	p, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	p.TotalPoints = 500
	p.Badges = append(p.Badges, "first_steps")

	again, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Zero(t, again.TotalPoints)
	assert.Empty(t, again.Badges)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	_, err := s.GetByID(ctx, "u-1")
	assert.ErrorIs(t, err, context.Canceled)
}
