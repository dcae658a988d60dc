package messaging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBusDispatch(t *testing.T) {
	t.Run("delivers to handlers of the matching type only", func(t *testing.T) {
		bus := syncBus()
		var xpEvents, goalEvents int

		require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
			xpEvents++
			return nil
		}))
		require.NoError(t, bus.Subscribe(shared.EventGoalCompleted, func(e shared.Event) error {
			goalEvents++
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))
		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))
		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventGoalCompleted, "goal-1")))

		assert.Equal(t, 2, xpEvents)
		assert.Equal(t, 1, goalEvents)
	})

	t.Run("SubscribeAll sees every event", func(t *testing.T) {
		bus := syncBus()
		var seen []shared.EventType

		require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
			seen = append(seen, e.EventType())
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))
		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventCycleRolledUp, "cycle-1")))

		assert.Equal(t, []shared.EventType{shared.EventXPAwarded, shared.EventCycleRolledUp}, seen)
	})

	t.Run("nil events and nil handlers are rejected", func(t *testing.T) {
		bus := syncBus()
		assert.Error(t, bus.Publish(nil))
		assert.Error(t, bus.Subscribe(shared.EventXPAwarded, nil))
	})

	t.Run("a panicking handler does not break publishing", func(t *testing.T) {
		bus := syncBus()
		var delivered bool

		require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
			panic("boom")
		}))
		require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
			delivered = true
			return nil
		}))

		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))
		assert.True(t, delivered)
	})
}

func TestInMemoryEventBusAsync(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 4
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	var count int

	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))
	}

	// Close waits for the pending handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBusClose(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")), ErrEventBusClosed)
	// Closing twice is fine.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBusMetrics(t *testing.T) {
	bus := syncBus()
	require.NotNil(t, bus.Metrics())

	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPAwarded, "user-1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
}
