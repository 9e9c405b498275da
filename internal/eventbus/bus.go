package eventbus

import (
	"sync"
	"time"
)

// Bus is a simple in-process pub/sub event bus. Handlers for a topic are
// invoked in subscription order; Publish iterates a snapshot of the handler
// list, so subscribing during a publish never delivers that same event to
// the new handler.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]entry
	nextID   int
}

type entry struct {
	id int
	fn Handler
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]entry),
	}
}

// Subscribe registers a handler for a topic and returns a function that
// removes it. The returned function is idempotent.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], entry{id: id, fn: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an event to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered.
func (b *Bus) Publish(topic Topic, payload any) {
	event := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, e := range b.snapshot(topic) {
		e.fn(event)
	}
}

// PublishAsync sends an event to all subscribers asynchronously.
func (b *Bus) PublishAsync(topic Topic, payload any) {
	event := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, e := range b.snapshot(topic) {
		go e.fn(event)
	}
}

func (b *Bus) snapshot(topic Topic) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]entry, len(b.handlers[topic]))
	copy(entries, b.handlers[topic])
	return entries
}
