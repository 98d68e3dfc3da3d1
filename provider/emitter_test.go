package provider

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEmitterDeliversInitialSessionSynchronously(t *testing.T) {
	var e Emitter
	var got []Event

	sub := e.Subscribe(Static(&Session{AccessToken: "a", User: User{ID: "u1"}}), func(ev Event) {
		got = append(got, ev)
	})
	defer sub.Unsubscribe()

	if len(got) != 1 {
		t.Fatalf("expected initial event during Subscribe, got %d events", len(got))
	}
	if got[0].Kind != EventInitialSession || got[0].Session == nil || got[0].Session.User.ID != "u1" {
		t.Fatalf("unexpected initial event: %+v", got[0])
	}
}

func TestEmitterNilInitialSession(t *testing.T) {
	var e Emitter
	var got Event
	e.Subscribe(nil, func(ev Event) { got = ev })
	if got.Kind != EventInitialSession || got.Session != nil {
		t.Fatalf("expected session-less initial event, got %+v", got)
	}
}

func TestEmitterUnsubscribeStopsDelivery(t *testing.T) {
	var e Emitter
	count := 0
	sub := e.Subscribe(nil, func(Event) { count++ })

	e.Emit(EventSignedIn, &Session{AccessToken: "x"})
	sub.Unsubscribe()
	sub.Unsubscribe()
	e.Emit(EventSignedOut, nil)

	if count != 2 {
		t.Fatalf("expected 2 deliveries (initial + signed in), got %d", count)
	}
	if e.Len() != 0 {
		t.Fatalf("expected no listeners, got %d", e.Len())
	}
}

func TestEmitterInitialSessionPrecedesConcurrentEmit(t *testing.T) {
	var e Emitter
	var mu sync.Mutex
	var kinds []EventKind

	emitted := make(chan struct{})
	current := func() *Session {
		started := make(chan struct{})
		go func() {
			close(started)
			e.Emit(EventSignedIn, &Session{AccessToken: "late", User: User{ID: "u1"}})
			close(emitted)
		}()
		<-started
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	sub := e.Subscribe(current, func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("concurrent Emit never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != EventInitialSession || kinds[1] != EventSignedIn {
		t.Fatalf("expected INITIAL_SESSION then SIGNED_IN, got %v", kinds)
	}
}

func TestEmitterClonesSessionPerListener(t *testing.T) {
	var e Emitter
	var first *Session
	e.Subscribe(nil, func(ev Event) {
		if ev.Kind == EventSignedIn {
			first = ev.Session
		}
	})

	src := &Session{AccessToken: "orig"}
	e.Emit(EventSignedIn, src)
	src.AccessToken = "mutated"

	if first == nil || first.AccessToken != "orig" {
		t.Fatalf("listener observed caller mutation: %+v", first)
	}
}

func TestErrorCodeMatching(t *testing.T) {
	err := error(&Error{Code: CodeOTPExpired, Message: "Token has expired or is invalid"})
	if !errors.Is(err, NewError(CodeOTPExpired, "")) {
		t.Fatalf("expected code match")
	}
	if errors.Is(err, NewError(CodeInvalidCredentials, "")) {
		t.Fatalf("unexpected match on different code")
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatalf("expected unknown code for plain error")
	}
	if CodeOf(Unavailable(errors.New("dial tcp"))) != CodeUnavailable {
		t.Fatalf("expected unavailable code")
	}
}
