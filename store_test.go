package storeauth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
)

func TestBootstrapWithoutSession(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(t, p, newScriptedProfiles())
	startStore(t, s)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.Loading {
		t.Fatal("expected loading=false")
	}
	if snap.User != nil || snap.CurrentAuthUser != nil || snap.AuthRole != "" {
		t.Fatalf("expected empty session, got %+v", snap)
	}
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", snap.State)
	}
	if got := s.Metrics().Value(MetricBootstrapCompleted); got != 1 {
		t.Fatalf("expected one bootstrap completion, got %d", got)
	}
	if p.subscribeCalls != 1 {
		t.Fatalf("expected exactly one subscription, got %d", p.subscribeCalls)
	}
}

func TestBootstrapCredentialPreflight(t *testing.T) {
	now := time.Now()
	blob := func(expiresAt int64) []byte {
		return []byte(`{"access_token":"a","expires_at":` + strconv.FormatInt(expiresAt, 10) + `,"user":{"id":"u1"}}`)
	}

	tests := []struct {
		name       string
		blob       []byte
		wantKept   bool
		wantMetric MetricID
	}{
		{name: "expired", blob: blob(now.Add(-time.Hour).Unix()), wantKept: false, wantMetric: MetricStaleCredentialPurged},
		{name: "not json", blob: []byte("{not json"), wantKept: false, wantMetric: MetricCorruptCredentialPurged},
		{name: "missing expiry", blob: []byte(`{"access_token":"a"}`), wantKept: false, wantMetric: MetricCorruptCredentialPurged},
		{name: "valid", blob: blob(now.Add(time.Hour).Unix()), wantKept: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := session.NewMemoryStorage()
			if err := st.Set(context.Background(), session.DefaultKey, tc.blob); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			p := &fakeProvider{storage: st, key: session.DefaultKey}
			s := newTestStore(t, p, newScriptedProfiles(), withStorage(st))
			startStore(t, s)
			waitReady(t, s)

			if p.blobAtSubscribe != tc.wantKept {
				t.Fatalf("blob present at subscribe = %v, want %v", p.blobAtSubscribe, tc.wantKept)
			}
			_, err := st.Get(context.Background(), session.DefaultKey)
			if tc.wantKept && err != nil {
				t.Fatalf("valid blob was removed: %v", err)
			}
			if !tc.wantKept && !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected blob removed, got err=%v", err)
			}
			if !tc.wantKept && s.Metrics().Value(tc.wantMetric) != 1 {
				t.Fatalf("expected metric %d to be 1", tc.wantMetric)
			}
		})
	}
}

func TestBootstrapExpiredTokenEndsUnauthenticated(t *testing.T) {
	st := session.NewMemoryStorage()
	expired := []byte(`{"access_token":"a","expires_at":` + strconv.FormatInt(time.Now().Unix()-3600, 10) + `}`)
	if err := st.Set(context.Background(), session.DefaultKey, expired); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	p := &fakeProvider{storage: st, key: session.DefaultKey}
	s := newTestStore(t, p, newScriptedProfiles(), withStorage(st))
	startStore(t, s)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.Loading || snap.User != nil || snap.CurrentAuthUser != nil || snap.State != StateUnauthenticated {
		t.Fatalf("expected guest state, got %+v", snap)
	}
}

func TestBootstrapWithSessionResolvesProfile(t *testing.T) {
	admin := userWithRole("u-admin", "")
	p := &fakeProvider{current: sessionFor(admin)}
	profiles := newScriptedProfiles(profile.Row{ID: "u-admin", Email: admin.Email, Role: "admin", FullName: "Ada"})
	s := newTestStore(t, p, profiles)
	startStore(t, s)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.Loading {
		t.Fatal("expected loading=false")
	}
	if snap.User == nil || snap.User.Role != RoleAdmin || snap.User.Fallback {
		t.Fatalf("expected stored admin profile, got %+v", snap.User)
	}
	if snap.AuthRole != RoleAdmin || !snap.RoleTrusted {
		t.Fatalf("expected trusted admin role, got %q trusted=%v", snap.AuthRole, snap.RoleTrusted)
	}
	if snap.CurrentAuthUser == nil || snap.CurrentAuthUser.ID != "u-admin" {
		t.Fatalf("unexpected auth user %+v", snap.CurrentAuthUser)
	}
	if snap.State != StateAuthenticatedResolved {
		t.Fatalf("expected resolved state, got %s", snap.State)
	}
}

func TestBootstrapCompletesWithFallbackWhenProfileMissing(t *testing.T) {
	seller := userWithRole("u-seller", "seller")
	p := &fakeProvider{current: sessionFor(seller)}
	s := newTestStore(t, p, newScriptedProfiles())
	startStore(t, s)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.User == nil || !snap.User.Fallback || snap.AuthRole != RoleSeller {
		t.Fatalf("expected fallback seller profile, got %+v", snap)
	}
}

func TestSafetyTimeoutForcesLoadingFalseOnce(t *testing.T) {
	p := &fakeProvider{silent: true}
	s := newTestStore(t, p, newScriptedProfiles(profile.Row{ID: "late", Role: "seller"}), withConfig(func(c *Config) {
		c.Bootstrap.SafetyTimeout = 20 * time.Millisecond
	}))

	var mu sync.Mutex
	transitions := 0
	last := true
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if last && !snap.Loading {
			transitions++
		}
		last = snap.Loading
	})

	startStore(t, s)
	waitReady(t, s)

	snap := s.Snapshot()
	if snap.CurrentAuthUser != nil || snap.User != nil {
		t.Fatalf("timeout must not alter identity, got %+v", snap)
	}
	if got := s.Metrics().Value(MetricBootstrapTimeout); got != 1 {
		t.Fatalf("expected one timeout, got %d", got)
	}

	p.deliverLate(provider.Event{Kind: provider.EventInitialSession, Session: sessionFor(userWithRole("late", ""))})
	waitFor(t, "late session resolved", func() bool { return s.Snapshot().RoleTrusted })

	if s.Loading() {
		t.Fatal("loading flipped back to true")
	}
	if got := s.Metrics().Value(MetricBootstrapCompleted); got != 0 {
		t.Fatalf("late INITIAL_SESSION must not complete bootstrap again, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if transitions != 1 {
		t.Fatalf("expected exactly one loading transition, got %d", transitions)
	}
}

func TestSafetyTimerIgnoredAfterInitialSession(t *testing.T) {
	p := &fakeProvider{current: sessionFor(userWithRole("u1", ""))}
	profiles := newScriptedProfiles(profile.Row{ID: "u1", Role: "user"})
	profiles.block = make(chan struct{})
	s := newTestStore(t, p, profiles, withConfig(func(c *Config) {
		c.Bootstrap.SafetyTimeout = 10 * time.Millisecond
	}))
	startStore(t, s)

	time.Sleep(40 * time.Millisecond)
	if !s.Loading() {
		t.Fatal("timer must not fire once INITIAL_SESSION was observed")
	}
	close(profiles.block)
	waitReady(t, s)
	if got := s.Metrics().Value(MetricBootstrapTimeout); got != 0 {
		t.Fatalf("expected no timeout, got %d", got)
	}
}

func TestRepeatedInitialSessionIgnored(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(t, p, newScriptedProfiles())
	startStore(t, s)
	waitReady(t, s)

	p.Emit(provider.EventInitialSession, sessionFor(userWithRole("intruder", "admin")))
	waitFor(t, "second event processed", func() bool {
		return s.Metrics().Value(MetricEventDuplicateInitial) == 1
	})

	if snap := s.Snapshot(); snap.CurrentAuthUser != nil {
		t.Fatalf("duplicate INITIAL_SESSION must be ignored, got %+v", snap.CurrentAuthUser)
	}
}

func TestSessionlessEventsClearAtomically(t *testing.T) {
	u := userWithRole("u1", "")
	p := &fakeProvider{current: sessionFor(u)}
	s := newTestStore(t, p, newScriptedProfiles(profile.Row{ID: "u1", Role: "seller"}))

	var mu sync.Mutex
	var seen []Snapshot
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	startStore(t, s)
	waitReady(t, s)

	p.Emit(provider.EventSignedOut, nil)
	waitFor(t, "cleared", func() bool { return s.Snapshot().CurrentAuthUser == nil })

	snap := s.Snapshot()
	if snap.User != nil || snap.AuthRole != "" || snap.RoleTrusted {
		t.Fatalf("expected fully cleared session, got %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, s := range seen {
		if s.CurrentAuthUser == nil && (s.User != nil || s.AuthRole != "" || s.RoleTrusted) {
			t.Fatalf("snapshot %d partially cleared: %+v", i, s)
		}
	}
}

func TestTokenRefreshRefetchesProfile(t *testing.T) {
	u := userWithRole("u1", "")
	p := &fakeProvider{current: sessionFor(u)}
	profiles := newScriptedProfiles(profile.Row{ID: "u1", Role: "user"})
	s := newTestStore(t, p, profiles)
	startStore(t, s)
	waitReady(t, s)
	if snap := s.Snapshot(); snap.AuthRole != RoleUser {
		t.Fatalf("expected user role, got %q", snap.AuthRole)
	}

	profiles.put(profile.Row{ID: "u1", Role: "seller"})
	before := profiles.callCount()
	p.Emit(provider.EventTokenRefreshed, sessionFor(u))
	waitFor(t, "refreshed role", func() bool { return s.Snapshot().AuthRole == RoleSeller })

	if profiles.callCount() == before {
		t.Fatal("refresh must look the profile up again")
	}
	if snap := s.Snapshot(); !snap.RoleTrusted || snap.State != StateAuthenticatedResolved {
		t.Fatalf("expected resolved state after refresh, got %+v", snap)
	}
}

func TestIdentitySwitchResolvesNewProfile(t *testing.T) {
	p := &fakeProvider{current: sessionFor(userWithRole("a", ""))}
	s := newTestStore(t, p, newScriptedProfiles(
		profile.Row{ID: "a", Role: "user"},
		profile.Row{ID: "b", Role: "admin"},
	))
	startStore(t, s)
	waitReady(t, s)

	p.Emit(provider.EventSignedIn, sessionFor(userWithRole("b", "")))
	waitFor(t, "switch", func() bool { return s.Snapshot().AuthRole == RoleAdmin })

	snap := s.Snapshot()
	if snap.CurrentAuthUser.ID != "b" || snap.User.ID != "b" {
		t.Fatalf("expected identity b, got %+v", snap)
	}
}

func TestStartTwiceFails(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(t, p, newScriptedProfiles())
	startStore(t, s)
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if p.subscribeCalls != 1 {
		t.Fatalf("expected one subscription, got %d", p.subscribeCalls)
	}
}

func TestDisposeStopsMutations(t *testing.T) {
	p := &fakeProvider{}
	profiles := newScriptedProfiles(profile.Row{ID: "u1", Role: "admin"})
	profiles.block = make(chan struct{})
	s := newTestStore(t, p, profiles)
	startStore(t, s)
	waitReady(t, s)

	p.Emit(provider.EventSignedIn, sessionFor(userWithRole("u1", "")))
	waitFor(t, "pending profile", func() bool {
		return s.Snapshot().State == StateAuthenticatedPendingProfile
	})

	s.Dispose()
	s.Dispose()
	close(profiles.block)

	snap := s.Snapshot()
	if snap.State != StateTornDown {
		t.Fatalf("expected torn down, got %s", snap.State)
	}
	if snap.User != nil || snap.RoleTrusted {
		t.Fatalf("no profile may be applied after Dispose, got %+v", snap)
	}
	if p.Len() != 0 {
		t.Fatalf("expected provider listener detached, got %d", p.Len())
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}

	p.Emit(provider.EventSignedOut, nil)
	if s.Snapshot().CurrentAuthUser == nil {
		t.Fatal("events after Dispose must not mutate state")
	}
}

func TestDisposeBeforeStart(t *testing.T) {
	s := newTestStore(t, &fakeProvider{}, newScriptedProfiles())
	s.Dispose()
	if err := s.Start(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}

func TestSignOutDiscardsInFlightResolution(t *testing.T) {
	p := &fakeProvider{}
	profiles := newScriptedProfiles(profile.Row{ID: "u1", Role: "admin"})
	s := newTestStore(t, p, profiles)
	startStore(t, s)
	waitReady(t, s)

	profiles.mu.Lock()
	profiles.block = make(chan struct{})
	profiles.mu.Unlock()

	p.Emit(provider.EventSignedIn, sessionFor(userWithRole("u1", "")))
	waitFor(t, "lookup started", func() bool { return profiles.callCount() == 1 })

	res := s.SignOut(context.Background())
	if !res.Success {
		t.Fatalf("SignOut failed: %+v", res.Error)
	}
	close(profiles.block)

	waitFor(t, "stale result discarded", func() bool {
		return s.Metrics().Value(MetricProfileDiscarded) == 1
	})
	if snap := s.Snapshot(); snap.CurrentAuthUser != nil || snap.User != nil {
		t.Fatalf("stale profile applied after sign-out: %+v", snap)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := newTestStore(t, &fakeProvider{}, newScriptedProfiles())
	calls := 0
	unsubscribe := s.Subscribe(func(Snapshot) { calls++ })
	unsubscribe()
	unsubscribe()
	startStore(t, s)
	waitReady(t, s)
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestAuditRecordsBootstrap(t *testing.T) {
	sink := NewChannelSink(16)
	p := &fakeProvider{current: sessionFor(userWithRole("u1", "seller"))}
	s := newTestStore(t, p, newScriptedProfiles(), withConfig(func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 16
	}), func(b *Builder) { b.WithAuditSink(sink) })
	startStore(t, s)
	waitReady(t, s)

	want := map[string]bool{AuditProfileFallback: false, AuditBootstrapComplete: false}
	timeout := time.After(2 * time.Second)
	for !want[AuditProfileFallback] || !want[AuditBootstrapComplete] {
		select {
		case ev := <-sink.Events():
			if _, ok := want[ev.EventType]; ok {
				want[ev.EventType] = true
				if ev.UserID != "u1" || ev.Role != "seller" {
					t.Fatalf("unexpected audit event %+v", ev)
				}
			}
		case <-timeout:
			t.Fatalf("missing audit events: %+v", want)
		}
	}
}
