package provider

import (
	"sync"

	"github.com/google/uuid"
)

type listenerEntry struct {
	id       uuid.UUID
	listener Listener
}

// Emitter fans auth events out to subscribed listeners in subscription order.
// The zero value is ready to use. Deliveries are serialized: a listener never
// sees an event from Emit before its INITIAL_SESSION, and listeners must not
// call back into the same Emitter.
type Emitter struct {
	deliver   sync.Mutex
	mu        sync.RWMutex
	listeners []listenerEntry
}

// Subscribe registers listener and delivers EventInitialSession before
// returning. current is read inside the delivery section, so a concurrent
// Emit either lands before it (and current already reflects that change) or
// after the initial event. A nil listener yields a no-op subscription.
func (e *Emitter) Subscribe(current func() *Session, listener Listener) Subscription {
	if listener == nil {
		return noopSubscription{}
	}

	e.deliver.Lock()
	defer e.deliver.Unlock()

	id := uuid.New()
	e.mu.Lock()
	e.listeners = append(e.listeners, listenerEntry{id: id, listener: listener})
	e.mu.Unlock()

	var initial *Session
	if current != nil {
		initial = current()
	}
	listener(Event{Kind: EventInitialSession, Session: cloneSession(initial)})

	return &subscription{emitter: e, id: id}
}

// Emit delivers an event to every listener on the calling goroutine.
func (e *Emitter) Emit(kind EventKind, session *Session) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.RLock()
	targets := make([]Listener, 0, len(e.listeners))
	for _, entry := range e.listeners {
		targets = append(targets, entry.listener)
	}
	e.mu.RUnlock()

	for _, listener := range targets {
		listener(Event{Kind: kind, Session: cloneSession(session)})
	}
}

// Static returns a current-session func for Subscribe that always yields s.
func Static(s *Session) func() *Session {
	return func() *Session { return s }
}

// Len reports the number of active listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *Emitter) remove(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, entry := range e.listeners {
		if entry.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

type subscription struct {
	emitter *Emitter
	id      uuid.UUID
	once    sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.emitter.remove(s.id)
	})
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
