package storeauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
)

// fakeProvider emits events the way hosted providers do: INITIAL_SESSION
// synchronously on Subscribe and SIGNED_IN/SIGNED_OUT from inside calls.
type fakeProvider struct {
	provider.Emitter

	mu      sync.Mutex
	current *provider.Session
	storage session.Storage
	key     string

	// silent suppresses INITIAL_SESSION; the listener is kept in late.
	silent bool
	late   provider.Listener

	subscribeCalls  int
	blobAtSubscribe bool

	signIn         func(email, password string) (*provider.User, error)
	signUpParams   []provider.SignUpParams
	signUpErr      error
	signOutErr     error
	verify         func(provider.VerifyParams) (*provider.User, error)
	updateErr      error
	updatedTo      string
	resetRedirects []string
	resetErr       error
	resends        []provider.OTPPurpose
}

func (p *fakeProvider) Subscribe(listener provider.Listener) provider.Subscription {
	p.mu.Lock()
	p.subscribeCalls++
	if p.storage != nil {
		_, err := p.storage.Get(context.Background(), p.key)
		p.blobAtSubscribe = err == nil
	}
	current := p.current
	silent := p.silent
	if silent {
		p.late = listener
	}
	p.mu.Unlock()

	if silent {
		return silentSubscription{}
	}
	return p.Emitter.Subscribe(provider.Static(current), listener)
}

type silentSubscription struct{}

func (silentSubscription) Unsubscribe() {}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*provider.User, error) {
	if p.signIn == nil {
		return nil, provider.NewError(provider.CodeInvalidCredentials, "Invalid login credentials")
	}
	u, err := p.signIn(email, password)
	if err != nil {
		return nil, err
	}
	p.Emit(provider.EventSignedIn, sessionFor(*u))
	return u, nil
}

func (p *fakeProvider) SignUp(_ context.Context, params provider.SignUpParams) (*provider.User, error) {
	p.mu.Lock()
	p.signUpParams = append(p.signUpParams, params)
	err := p.signUpErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &provider.User{ID: "new-" + params.Email, Email: params.Email, UserMetadata: params.Metadata}, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.Emit(provider.EventSignedOut, nil)
	return p.signOutErr
}

func (p *fakeProvider) SendPasswordResetCode(_ context.Context, _ string, redirectURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetRedirects = append(p.resetRedirects, redirectURL)
	return p.resetErr
}

func (p *fakeProvider) VerifyOneTimeCode(_ context.Context, params provider.VerifyParams) (*provider.User, error) {
	if p.verify == nil {
		return nil, provider.NewError(provider.CodeOTPExpired, "Token has expired or is invalid")
	}
	u, err := p.verify(params)
	if err != nil {
		return nil, err
	}
	p.Emit(provider.EventSignedIn, sessionFor(*u))
	if params.Purpose == provider.OTPRecovery {
		p.Emit(provider.EventPasswordRecovery, sessionFor(*u))
	}
	return u, nil
}

func (p *fakeProvider) UpdatePassword(_ context.Context, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updatedTo = newPassword
	return nil
}

func (p *fakeProvider) ResendCode(_ context.Context, _ string, purpose provider.OTPPurpose) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resends = append(p.resends, purpose)
	return nil
}

func (p *fakeProvider) deliverLate(ev provider.Event) {
	p.mu.Lock()
	l := p.late
	p.mu.Unlock()
	if l != nil {
		l(ev)
	}
}

func sessionFor(u provider.User) *provider.Session {
	return &provider.Session{
		AccessToken:  "at-" + u.ID,
		RefreshToken: "rt-" + u.ID,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         u,
	}
}

func userWithRole(id, role string) provider.User {
	md := map[string]any{}
	if role != "" {
		md[AttrRole] = role
	}
	return provider.User{ID: id, Email: id + "@shop.test", UserMetadata: md}
}

// scriptedProfiles returns queued errors first, then rows by id.
type scriptedProfiles struct {
	mu    sync.Mutex
	rows  map[string]*profile.Row
	errs  []error
	calls int
	block chan struct{}
}

func newScriptedProfiles(rows ...profile.Row) *scriptedProfiles {
	p := &scriptedProfiles{rows: map[string]*profile.Row{}}
	for i := range rows {
		r := rows[i]
		p.rows[r.ID] = &r
	}
	return p
}

func (p *scriptedProfiles) GetProfileByID(ctx context.Context, id string) (*profile.Row, error) {
	p.mu.Lock()
	p.calls++
	var err error
	if len(p.errs) > 0 {
		err = p.errs[0]
		p.errs = p.errs[1:]
	}
	row := p.rows[id]
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%w: %w", profile.ErrCanceled, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %w", profile.ErrUnavailable, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, profile.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (p *scriptedProfiles) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProfiles) put(row profile.Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[row.ID] = &row
}

var errTransient = errors.New("connection reset by peer")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Bootstrap.SafetyTimeout = 5 * time.Second
	cfg.Profile.RetryDelay = time.Millisecond
	cfg.Auth.PasswordResetRedirectURL = "https://shop.test/reset"
	return cfg
}

type storeOption func(*Builder)

func withConfig(mutate func(*Config)) storeOption {
	return func(b *Builder) {
		cfg := testConfig()
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withStorage(st session.Storage) storeOption {
	return func(b *Builder) { b.WithCredentialStorage(st) }
}

func newTestStore(t *testing.T, p *fakeProvider, profiles profile.Store, opts ...storeOption) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	b := New().
		WithConfig(testConfig()).
		WithProvider(p).
		WithProfileStore(profiles).
		WithCredentialStorage(session.NewMemoryStorage()).
		WithLogger(logger)
	for _, opt := range opts {
		opt(b)
	}
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(s.Dispose)
	return s
}

func startStore(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func waitReady(t *testing.T, s *Store) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("store never finished loading")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
