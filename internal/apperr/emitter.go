package apperr

import (
	"log/slog"
	"sync"
)

// Emitter broadcasts classified errors to subscribers in registration order.
// It is the observer boundary the presentation layer attaches to.
type Emitter struct {
	mu   sync.Mutex
	subs []*Subscription
	next int
}

// Subscription is a handle returned by Subscribe; Unsubscribe is idempotent
// and takes effect immediately, including during an in-progress Emit.
type Subscription struct {
	e  *Emitter
	id int
	fn func(ClassifiedError)
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers a callback for every subsequently emitted error.
func (e *Emitter) Subscribe(fn func(ClassifiedError)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := &Subscription{e: e, id: e.next, fn: fn}
	e.next++
	e.subs = append(e.subs, sub)
	return sub
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	for i, sub := range s.e.subs {
		if sub.id == s.id {
			s.e.subs = append(s.e.subs[:i], s.e.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers the error to every subscriber registered at the time of the
// call. Subscribers added mid-emit are not invoked for this emit; subscribers
// removed mid-emit are skipped if not yet reached.
func (e *Emitter) Emit(ce ClassifiedError) {
	e.mu.Lock()
	snapshot := make([]*Subscription, len(e.subs))
	copy(snapshot, e.subs)
	e.mu.Unlock()

	for _, sub := range snapshot {
		if e.active(sub.id) {
			sub.fn(ce)
		}
	}
}

func (e *Emitter) active(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		if sub.id == id {
			return true
		}
	}
	return false
}

// Handle classifies a raw failure, broadcasts it and returns the classified
// value. context is an advisory label for diagnostics only; it never changes
// classification. This is the single integration point for caught failures.
func (e *Emitter) Handle(raw any, context string) ClassifiedError {
	ce := Classify(raw)
	if context != "" {
		slog.Error("operation failed", "context", context, "kind", ce.Kind, "detail", ce.Detail)
	} else {
		slog.Error("operation failed", "kind", ce.Kind, "detail", ce.Detail)
	}
	e.Emit(ce)
	return ce
}
