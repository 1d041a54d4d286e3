package hooks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var got *EventContext
	sub := bus.Subscribe(EventSelectionChanged, func(ctx *EventContext) {
		got = ctx
	})
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, EventSelectionChanged, sub.Event)

	bus.Publish(&EventContext{
		Event:     EventSelectionChanged,
		Timestamp: time.Now(),
		Model:     "mistral-large-latest",
		PrevModel: "claude-3-5-sonnet",
	})

	require.NotNil(t, got)
	assert.Equal(t, "mistral-large-latest", got.Model)

	// Other events do not reach the subscriber.
	got = nil
	bus.Publish(&EventContext{Event: EventPersistenceFailed})
	assert.Nil(t, got)
}

func TestEventBus_SubscribeWithFilter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls int32
	bus.SubscribeWithFilter(EventSelectionChanged, func(ctx *EventContext) {
		atomic.AddInt32(&calls, 1)
	}, func(ctx *EventContext) bool {
		return ctx.Principal == "alice"
	})

	bus.Publish(&EventContext{Event: EventSelectionChanged, Principal: "bob"})
	bus.Publish(&EventContext{Event: EventSelectionChanged, Principal: "alice"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls int32
	first := bus.Subscribe(EventPolicyReconciled, func(*EventContext) { atomic.AddInt32(&calls, 1) })
	bus.Subscribe(EventPolicyReconciled, func(*EventContext) { atomic.AddInt32(&calls, 10) })
	assert.Equal(t, 2, bus.SubscriberCount(EventPolicyReconciled))

	first.Unsubscribe()
	first.Unsubscribe()
	assert.Equal(t, 1, bus.SubscriberCount(EventPolicyReconciled))

	bus.Publish(&EventContext{Event: EventPolicyReconciled})
	assert.Equal(t, int32(10), atomic.LoadInt32(&calls))
}

func TestEventBus_PanicRecovery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var after int32
	bus.Subscribe(EventSelectionChanged, func(*EventContext) { panic("boom") })
	bus.Subscribe(EventSelectionChanged, func(*EventContext) { atomic.StoreInt32(&after, 1) })

	assert.NotPanics(t, func() {
		bus.Publish(&EventContext{Event: EventSelectionChanged})
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&after))
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	done := make(chan string, 1)
	bus.Subscribe(EventConfigReloaded, func(ctx *EventContext) { done <- ctx.Model })

	bus.PublishAsync(&EventContext{Event: EventConfigReloaded, Model: "x"})

	select {
	case m := <-done:
		assert.Equal(t, "x", m)
	case <-time.After(2 * time.Second):
		t.Fatal("async event was not delivered")
	}
}

func TestEventBus_ShutdownIgnoresAsync(t *testing.T) {
	bus := NewEventBus()
	var calls int32
	bus.Subscribe(EventConfigReloaded, func(*EventContext) { atomic.AddInt32(&calls, 1) })

	bus.Shutdown()
	bus.Shutdown()
	bus.PublishAsync(&EventContext{Event: EventConfigReloaded})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
