package eventhandler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberquest/cyberquest-api/internal/domain/shared"
	"github.com/cyberquest/cyberquest-api/internal/infrastructure/messaging"
	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

func TestActivityLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelInfo, Format: logger.FormatJSON})
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()

	require.NoError(t, NewActivityLogger(log).Register(bus))

	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "first_steps", "First Steps", "common", at)))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", 0, 1, false, at)))
	require.NoError(t, bus.Publish(shared.NewDailyCompletedEvent("u1", "2024-03-05", "ph-002", true, at)))

	out := buf.String()
	assert.Contains(t, out, `"msg":"badge unlocked"`)
	assert.Contains(t, out, `"badge_id":"first_steps"`)
	assert.Contains(t, out, `"msg":"daily challenge completed"`)
	// Streak changes log at debug.
	assert.NotContains(t, out, "streak extended")
}
