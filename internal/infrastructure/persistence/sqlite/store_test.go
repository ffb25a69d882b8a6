package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/persistence/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cyberquest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return openTestStore(t) })
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "cq.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, storetest.NewUser(t, "u-1", "alice", "")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, int64(1), got.Version)
}

func TestUpdate_SerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Create(ctx, storetest.NewUser(t, "u-1", "alice", "")))

	// The single connection serialises transactions, so every update
	// commits on the first attempt.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "u-1", func(p *progression.Progress, _ *progression.Writes) error {
				_, err := p.ApplySubmission(progression.SubmissionDelta{GameType: shared.GamePasswordStrength, PointsEarned: 10}, storetest.Now)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 80, got.TotalPoints)
	assert.Equal(t, 8, got.Counter(shared.CounterGamesPlayed))
}
