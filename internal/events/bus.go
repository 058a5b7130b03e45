// Package events carries task and presence notifications from the code
// that mutates state to the WebSocket hub, the event log and the scheduler.
package events

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one notification on the bus.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	UserID    string         `json:"user_id,omitempty"` // acting user, if any
	Payload   map[string]any `json:"payload"`
}

// NewEvent stamps a fresh id and the current UTC time.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Payload:   payload,
	}
}

// Subscriber receives events on the dispatch goroutine, in publish order.
// It must not block.
type Subscriber func(Event)

type subscription struct {
	id      int
	types   []EventType
	handler Subscriber
}

func (s *subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// DefaultBufferSize is used when NewBus is given a non-positive size.
const DefaultBufferSize = 256

// Bus queues published events and hands them, one at a time, to every
// matching subscriber in registration order.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	nextID  int
	queue   chan Event
	history *history
	closed  bool
	done    chan struct{}
}

// NewBus starts a bus. bufferSize bounds both the pending queue and the
// history kept for /api/events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &Bus{
		queue:   make(chan Event, bufferSize),
		history: newHistory(bufferSize),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.queue:
			b.history.add(e)
			b.deliver(e)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	var targets []Subscriber
	for _, s := range b.subs {
		if s.wants(e.Type) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(e)
	}
}

// Publish queues e without blocking. It reports false when the queue is full
// or the bus is closed, in which case the event is dropped.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.queue <- e:
		return true
	default:
		return false
	}
}

// Subscribe registers handler for the given types, or for every type when
// none is given. The returned function removes the subscription.
func (b *Bus) Subscribe(handler Subscriber, types ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, &subscription{id: id, types: types, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool { return s.id == id })
	}
}

// SubscribeChan delivers matching events on a buffered channel, dropping
// them while it is full. The returned function unsubscribes and closes the
// channel; calling it twice is harmless.
func (b *Bus) SubscribeChan(size int, types ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, size)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	}, types...)

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// History returns up to limit of the most recent dispatched events, oldest
// first, restricted to types when any are given.
func (b *Bus) History(limit int, types ...EventType) []Event {
	return b.history.recent(limit, types)
}

// Close stops dispatching. Queued events that were not yet dispatched are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}
