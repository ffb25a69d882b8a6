package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
)

func levelUp(userID string) shared.Event {
	return shared.NewLevelUpEvent(userID, 1, 2, "Security Novice", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC))
}

func TestInMemoryEventBusSync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var typed, all []string
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		typed = append(typed, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) error {
		t.Fatal("unexpected delivery")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, string(e.EventType()))
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(levelUp("u1")))
	assert.Equal(t, []string{"u1"}, typed)
	assert.Equal(t, []string{string(shared.EventLevelUp)}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.HandlerExecutions)
	assert.Equal(t, int64(1), snap.HandlerFailures)
	assert.Equal(t, 0.5, snap.HandlerSuccessRate)
}

func TestInMemoryEventBusAsync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var n atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		n.Add(1)
		return nil
	}))
	for range 50 {
		require.NoError(t, bus.Publish(levelUp("u1")))
	}
	bus.Drain()
	assert.Equal(t, int32(50), n.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(levelUp("u1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBusRecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var after bool
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		after = true
		return nil
	}))

	require.NoError(t, bus.Publish(levelUp("u1")))
	assert.True(t, after)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBusRejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestRedisEventBusFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	newBus := func(id string) *RedisEventBus {
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		bus, err := NewRedisEventBus(ctx, RedisEventBusConfig{Client: client, InstanceID: id})
		require.NoError(t, err)
		t.Cleanup(func() { _ = bus.Close() })
		return bus
	}
	a, b := newBus("a"), newBus("b")

	var mu sync.Mutex
	var seenA, seenB []shared.Event
	require.NoError(t, a.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seenA = append(seenA, e)
		return nil
	}))
	require.NoError(t, b.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seenB = append(seenB, e)
		return nil
	}))

	require.NoError(t, a.Publish(levelUp("u1")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenA) == 1 && len(seenB) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// The publisher sees its own typed event once, the peer sees the payload.
	_, local := seenA[0].(shared.LevelUpEvent)
	assert.True(t, local)
	remote, ok := seenB[0].(RemoteEvent)
	require.True(t, ok)
	assert.Equal(t, "a", remote.Origin)
	assert.Equal(t, "u1", remote.AggregateID())
	assert.EqualValues(t, 2, remote.Payload()["new_level"])
}

func TestRedisEventBusRequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(context.Background(), RedisEventBusConfig{})
	assert.Error(t, err)
}
