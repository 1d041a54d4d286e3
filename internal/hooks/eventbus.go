// Package hooks provides an in-process event bus used to notify presentation
// adapters and other observers about selection and policy changes.
package hooks

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// asyncQueueSize bounds PublishAsync; events beyond it are dropped.
const asyncQueueSize = 256

// Subscription is a handle for a registered subscriber.
type Subscription struct {
	ID          string
	Event       HookEvent
	Callback    func(*EventContext)
	Filter      func(*EventContext) bool
	Unsubscribe func()
}

func (s *Subscription) accepts(evt *EventContext) bool {
	return s.Filter == nil || s.Filter(evt)
}

// EventBus fans events out to subscribers. Publish delivers synchronously on the
// caller's goroutine; PublishAsync hands the event to a single worker.
type EventBus struct {
	mu     sync.RWMutex
	topics map[HookEvent][]*Subscription

	queue  chan *EventContext
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// NewEventBus creates a bus and starts its async worker.
func NewEventBus() *EventBus {
	b := &EventBus{
		topics: make(map[HookEvent][]*Subscription),
		queue:  make(chan *EventContext, asyncQueueSize),
		done:   make(chan struct{}),
	}
	go b.drain()
	return b
}

// Subscribe registers callback for event.
func (b *EventBus) Subscribe(event HookEvent, callback func(*EventContext)) *Subscription {
	return b.SubscribeWithFilter(event, callback, nil)
}

// SubscribeWithFilter registers callback for the events of kind event that
// filter accepts. A nil filter accepts everything.
func (b *EventBus) SubscribeWithFilter(event HookEvent, callback func(*EventContext), filter func(*EventContext) bool) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		Event:    event,
		Callback: callback,
		Filter:   filter,
	}
	var once sync.Once
	sub.Unsubscribe = func() { once.Do(func() { b.remove(sub) }) }

	b.mu.Lock()
	b.topics[event] = append(b.topics[event], sub)
	b.mu.Unlock()
	return sub
}

func (b *EventBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[sub.Event]
	kept := subs[:0:0]
	for _, s := range subs {
		if s != sub {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.topics, sub.Event)
		return
	}
	b.topics[sub.Event] = kept
}

// SubscriberCount returns the number of subscribers for event.
func (b *EventBus) SubscriberCount(event HookEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[event])
}

func (b *EventBus) snapshot(event HookEvent) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Subscription(nil), b.topics[event]...)
}

// Publish delivers evt to every matching subscriber before returning.
// A panicking subscriber is logged and does not stop delivery.
func (b *EventBus) Publish(evt *EventContext) {
	if evt == nil {
		return
	}
	for _, sub := range b.snapshot(evt.Event) {
		if sub.accepts(evt) {
			invoke(sub, evt)
		}
	}
}

func invoke(sub *Subscription, evt *EventContext) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("event subscriber %s panicked on %s: %v", sub.ID, evt.Event, r)
		}
	}()
	sub.Callback(evt)
}

// PublishAsync queues evt for delivery. It never blocks: when the queue is full
// or the bus is shut down the event is dropped.
func (b *EventBus) PublishAsync(evt *EventContext) {
	if evt == nil || b.closed.Load() {
		return
	}
	select {
	case b.queue <- evt:
	default:
		log.Warnf("event queue full, dropping %s", evt.Event)
	}
}

func (b *EventBus) drain() {
	for {
		select {
		case <-b.done:
			return
		case evt := <-b.queue:
			b.Publish(evt)
		}
	}
}

// Shutdown stops the async worker. Queued events are dropped; Publish keeps working.
func (b *EventBus) Shutdown() {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.done)
	})
}
