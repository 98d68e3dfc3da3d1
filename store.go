package storeauth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/storeauth/internal/audit"
	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Store owns "who is logged in". It reconciles the provider's event stream
// with the profile store and exposes the result as immutable snapshots.
//
// Lifecycle: Build, then Start once, then Dispose once. Provider events are
// processed one at a time on a single goroutine; operations may run
// concurrently with it. Every asynchronous result is applied only while the
// store is live and no clear happened since the work began.
type Store struct {
	cfg      Config
	provider provider.Provider
	profiles profile.Store
	storage  session.Storage
	logger   logrus.FieldLogger
	metrics  *Metrics
	audit    *internalaudit.Dispatcher
	now      func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	events   chan provider.Event
	loopDone chan struct{}
	group    singleflight.Group

	lifecycleMu sync.Mutex
	started     bool
	disposed    bool
	sub         provider.Subscription
	timer       *time.Timer

	mu          sync.RWMutex
	state       sessionState
	epoch       uint64
	initialSeen bool
	loadingDone bool
	torn        bool
	ready       chan struct{}

	obsMu     sync.Mutex
	observers map[uint64]func(Snapshot)
	nextObs   uint64
	notifyMu  sync.Mutex
}

type sessionState struct {
	authUser    *AuthUser
	profile     *Profile
	role        Role
	roleTrusted bool
	loading     bool
}

type resolution struct {
	profile  *Profile
	attempts int
	applied  bool
}

func newStore(cfg Config, p provider.Provider, profiles profile.Store, storage session.Storage, logger logrus.FieldLogger, sink AuditSink, now func() time.Time) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		cfg:      cfg,
		provider: p,
		profiles: profiles,
		storage:  storage,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan provider.Event, cfg.Bootstrap.EventBuffer),
		loopDone:  make(chan struct{}),
		state:     sessionState{loading: true},
		ready:     make(chan struct{}),
		observers: make(map[uint64]func(Snapshot)),
	}
}

/*
====================================
LIFECYCLE
====================================
*/

// Start removes stale persisted credentials, subscribes to the provider
// exactly once and arms the bootstrap safety timer. ctx bounds only the
// credential pre-flight; the subscription lives until Dispose.
func (s *Store) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	if s.cfg.Bootstrap.PurgeStaleCredentials {
		s.purgeCredentials(ctx)
	}

	go s.loop()

	s.timer = time.AfterFunc(s.cfg.Bootstrap.SafetyTimeout, s.onSafetyTimeout)
	s.sub = s.provider.Subscribe(s.enqueue)

	s.logger.WithField("safety_timeout", s.cfg.Bootstrap.SafetyTimeout.String()).Debug("session store started")
	return nil
}

// Dispose detaches from the provider, stops the safety timer and waits for
// the event loop to exit. No state mutation is applied afterwards. Safe to
// call more than once.
func (s *Store) Dispose() {
	s.lifecycleMu.Lock()
	if s.disposed {
		s.lifecycleMu.Unlock()
		return
	}
	s.disposed = true
	started := s.started
	sub, timer := s.sub, s.timer
	s.lifecycleMu.Unlock()

	s.mu.Lock()
	s.torn = true
	s.mu.Unlock()
	s.cancel()

	if timer != nil {
		timer.Stop()
	}
	if sub != nil {
		sub.Unsubscribe()
	}
	if started {
		<-s.loopDone
	}

	s.audit.Close()
	s.logger.Debug("session store disposed")
	s.notify()
}

func (s *Store) purgeCredentials(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cfg.Bootstrap.PurgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Bootstrap.PurgeTimeout)
		defer cancel()
	}

	key := s.cfg.Bootstrap.StorageKey
	outcome, err := session.Purge(ctx, s.storage, key, s.now())
	log := s.logger.WithFields(logrus.Fields{"key": key, "outcome": outcome.String()})
	if err != nil {
		log.WithError(err).Warn("credential pre-flight failed")
		return
	}

	switch outcome {
	case session.PurgeExpired:
		s.metrics.Inc(MetricStaleCredentialPurged)
	case session.PurgeCorrupt:
		s.metrics.Inc(MetricCorruptCredentialPurged)
	}
	if !outcome.Removed() {
		log.Debug("credential pre-flight")
		return
	}

	log.Info("removed stale persisted credentials")
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditCredentialsPurged,
		Success:   true,
		Metadata:  map[string]string{"outcome": outcome.String()},
	})
}

/*
====================================
EVENT LOOP
====================================
*/

// enqueue is the provider listener. It may run on any goroutine, including
// synchronously inside Subscribe or a provider call.
func (s *Store) enqueue(ev provider.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Store) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Store) handleEvent(ev provider.Event) {
	s.metrics.Inc(MetricEventReceived)
	log := s.logger.WithFields(logrus.Fields{
		"event":       string(ev.Kind),
		"has_session": ev.Session != nil,
	})
	log.Debug("auth event")

	initial := ev.Kind == provider.EventInitialSession
	if initial {
		s.mu.Lock()
		dup := s.initialSeen
		if !dup && !s.torn {
			s.initialSeen = true
		}
		s.mu.Unlock()
		if dup {
			s.metrics.Inc(MetricEventDuplicateInitial)
			log.Warn("ignoring repeated INITIAL_SESSION")
			return
		}
	}

	if ev.Kind == provider.EventSignedOut || ev.Session == nil {
		s.clear(s.ctx, string(ev.Kind))
		if initial {
			s.completeBootstrap(false)
		}
		return
	}

	user := authUserFrom(ev.Session.User)
	epoch, ok := s.adoptIdentity(user)
	if !ok {
		return
	}
	select {
	case <-s.resolveShared(epoch, user):
	case <-s.ctx.Done():
		return
	}
	if initial {
		s.completeBootstrap(true)
	}
}

func (s *Store) onSafetyTimeout() {
	s.mu.Lock()
	if s.torn || s.initialSeen || s.loadingDone {
		s.mu.Unlock()
		return
	}
	s.finishLoadingLocked()
	s.mu.Unlock()

	s.metrics.Inc(MetricBootstrapTimeout)
	s.logger.WithField("safety_timeout", s.cfg.Bootstrap.SafetyTimeout.String()).
		Warn("provider never reported INITIAL_SESSION; continuing as guest")
	s.emitAudit(s.ctx, AuditEvent{EventType: AuditBootstrapTimeout, Success: false})
	s.notify()
}

func (s *Store) completeBootstrap(authenticated bool) {
	s.mu.Lock()
	if s.torn || s.loadingDone {
		s.mu.Unlock()
		return
	}
	s.finishLoadingLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.Inc(MetricBootstrapCompleted)
	s.logger.WithFields(logrus.Fields{
		"authenticated": authenticated,
		"role":          string(snap.AuthRole),
	}).Info("session bootstrap complete")

	ev := AuditEvent{
		EventType: AuditBootstrapComplete,
		Success:   true,
		Role:      string(snap.AuthRole),
	}
	if snap.CurrentAuthUser != nil {
		ev.UserID = snap.CurrentAuthUser.ID
		ev.Email = snap.CurrentAuthUser.Email
	}
	s.emitAudit(s.ctx, ev)
	s.notify()
}

func (s *Store) finishLoadingLocked() {
	s.loadingDone = true
	s.state.loading = false
	close(s.ready)
}

/*
====================================
STATE TRANSITIONS
====================================
*/

// clear drops identity, profile and role and invalidates every in-flight
// resolution.
func (s *Store) clear(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	prev := s.state.authUser
	prevRole := s.state.role
	s.epoch++
	s.state.authUser = nil
	s.state.profile = nil
	s.state.role = ""
	s.state.roleTrusted = false
	s.mu.Unlock()

	if prev != nil {
		s.metrics.Inc(MetricSessionCleared)
		s.entry(ctx).WithFields(logrus.Fields{"user_id": prev.ID, "reason": reason}).Info("session cleared")
		s.emitAudit(ctx, AuditEvent{
			EventType: AuditSessionCleared,
			UserID:    prev.ID,
			Email:     prev.Email,
			Role:      string(prevRole),
			Success:   true,
			Metadata:  map[string]string{"reason": reason},
		})
	}
	s.notify()
}

// adoptIdentity records user as the current identity. A different identity
// starts a new epoch and drops the previous profile; the same identity keeps
// its resolved profile visible until the next lookup replaces it.
func (s *Store) adoptIdentity(user *AuthUser) (epoch uint64, ok bool) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return 0, false
	}
	cur := s.state.authUser
	if cur == nil || cur.ID != user.ID {
		s.epoch++
		s.state.profile = nil
		s.state.role = ""
		s.state.roleTrusted = false
	}
	s.state.authUser = user
	epoch = s.epoch
	s.mu.Unlock()

	s.notify()
	return epoch, true
}

// resolveShared runs at most one profile resolution per identity and epoch,
// bound to the store lifetime, and applies it when still current.
func (s *Store) resolveShared(epoch uint64, user *AuthUser) <-chan singleflight.Result {
	key := strconv.FormatUint(epoch, 10) + "/" + user.ID
	return s.group.DoChan(key, func() (any, error) {
		start := time.Now()
		p, attempts := s.resolveGuarded(user)
		s.metrics.Observe(MetricProfileResolveLatency, time.Since(start))
		return resolution{
			profile:  p,
			attempts: attempts,
			applied:  s.applyProfile(epoch, user.ID, p),
		}, nil
	})
}

// resolveGuarded runs resolveProfile and turns a panicking profile store into
// the identity fallback. singleflight re-panics on its own goroutine, out of
// reach of the operation boundary.
func (s *Store) resolveGuarded(user *AuthUser) (p *Profile, attempts int) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Inc(MetricOperationPanic)
			s.metrics.Inc(MetricProfileFallback)
			s.logger.WithFields(logrus.Fields{
				"user_id": user.ID,
				"panic":   fmt.Sprint(r),
			}).Error("profile resolution panicked; using fallback profile")
			p, attempts = fallbackProfile(user, s.now()), 1
		}
	}()
	return s.resolveProfile(s.ctx, user)
}

func (s *Store) applyProfile(epoch uint64, userID string, p *Profile) bool {
	s.mu.Lock()
	if s.torn || s.ctx.Err() != nil || epoch != s.epoch ||
		s.state.authUser == nil || s.state.authUser.ID != userID {
		s.mu.Unlock()
		s.metrics.Inc(MetricProfileDiscarded)
		s.logger.WithField("user_id", userID).Debug("discarding stale profile result")
		return false
	}
	s.state.profile = p
	s.state.role = p.Role
	s.state.roleTrusted = true
	s.mu.Unlock()

	s.notify()
	return true
}

/*
====================================
READ SIDE
====================================
*/

// Snapshot returns a copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		CurrentAuthUser: s.state.authUser.clone(),
		Loading:         s.state.loading,
		RoleTrusted:     s.state.roleTrusted,
	}
	if s.state.profile != nil {
		p := *s.state.profile
		snap.User = &p
	}
	if s.state.roleTrusted {
		snap.AuthRole = s.state.role
	}

	switch {
	case s.torn:
		snap.State = StateTornDown
	case s.state.authUser != nil && s.state.roleTrusted:
		snap.State = StateAuthenticatedResolved
	case s.state.authUser != nil:
		snap.State = StateAuthenticatedPendingProfile
	case s.state.loading:
		snap.State = StateBootstrapping
	default:
		snap.State = StateUnauthenticated
	}
	return snap
}

// Loading reports whether the initial session check is still pending.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.loading
}

// Ready is closed once loading becomes false.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe registers fn to receive a snapshot after every state change.
// Calls are serialized. fn must not call Dispose.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.obsMu.Lock()
	if len(s.observers) == 0 {
		s.obsMu.Unlock()
		return
	}
	targets := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		targets = append(targets, fn)
	}
	s.obsMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range targets {
		fn(snap)
	}
}

// Metrics returns the store's counters.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot copies the store's counters for exporters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}
