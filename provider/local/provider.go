package local

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/storeauth/internal"
	"github.com/MrEthical07/storeauth/internal/rate"
	"github.com/MrEthical07/storeauth/internal/stores"
	"github.com/MrEthical07/storeauth/jwt"
	"github.com/MrEthical07/storeauth/password"
	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
)

// Messages mirror the hosted platform so message-based fallbacks keep working.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgOTPExpired         = "Token has expired or is invalid"
	msgUserExists         = "User already registered"
	msgRateLimited        = "Email rate limit exceeded"
	msgSessionMissing     = "Auth session missing!"
)

// Deps are the collaborators of a local [Provider]. Redis, Tokens and Hasher
// are required.
type Deps struct {
	Redis    redis.UniversalClient
	Tokens   *jwt.Manager
	Hasher   *password.Hasher
	Mailer   Mailer
	Profiles profile.Writer
	Storage  session.Storage
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Provider implements [provider.Provider] on Redis.
type Provider struct {
	cfg      Config
	redis    redis.UniversalClient
	tokens   *jwt.Manager
	hasher   *password.Hasher
	codes    *stores.CodeStore
	limiter  *rate.Limiter
	mailer   Mailer
	profiles profile.Writer
	storage  session.Storage
	logger   logrus.FieldLogger
	now      func() time.Time

	emitter provider.Emitter

	mu       sync.Mutex
	current  *provider.Session
	restored bool
	triggers sync.WaitGroup
}

var _ provider.Provider = (*Provider)(nil)

// New validates cfg and wires the provider.
func New(cfg Config, deps Deps) (*Provider, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "sfl"
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = session.DefaultKey
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("local: redis client is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("local: token manager is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("local: password hasher is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Mailer == nil {
		deps.Mailer = LogMailer{Logger: deps.Logger}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Provider{
		cfg:    cfg,
		redis:  deps.Redis,
		tokens: deps.Tokens,
		hasher: deps.Hasher,
		codes:  stores.NewCodeStore(deps.Redis, cfg.Prefix+":otp").WithClock(deps.Now),
		limiter: rate.New(deps.Redis, cfg.Prefix, map[string]rate.Policy{
			scopeSignIn:   {MaxAttempts: cfg.SignInAttempts, Window: cfg.SignInWindow},
			scopeCodeSend: {MaxAttempts: cfg.CodeSendAttempts, Window: cfg.CodeSendWindow},
		}),
		mailer:   deps.Mailer,
		profiles: deps.Profiles,
		storage:  deps.Storage,
		logger:   deps.Logger.WithField("component", "provider.local"),
		now:      deps.Now,
	}, nil
}

// Subscribe delivers INITIAL_SESSION with the restored or current session.
func (p *Provider) Subscribe(listener provider.Listener) provider.Subscription {
	p.restoreOnce()
	return p.emitter.Subscribe(p.Session, listener)
}

// Session returns a copy of the active session, or nil.
func (p *Provider) Session() *provider.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	out := *p.current
	return &out
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, pw string) (*provider.User, error) {
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return nil, &provider.Error{Code: provider.CodeValidation, Message: "missing email or password", Status: 400}
	}

	if err := p.limiter.Check(ctx, scopeSignIn, email); err != nil {
		return nil, p.limitError(err)
	}

	acct, err := p.loadAccount(ctx, email)
	if err != nil && !errors.Is(err, errAccountNotFound) {
		return nil, provider.Unavailable(err)
	}

	ok := false
	if acct != nil {
		ok, err = p.hasher.Verify(pw, acct.PasswordHash)
		if err != nil && !errors.Is(err, password.ErrTooLong) {
			p.logger.WithError(err).WithField("user_id", acct.ID).Warn("stored password hash unreadable")
		}
	}
	if !ok {
		if err := p.limiter.Hit(ctx, scopeSignIn, email); err != nil && errors.Is(err, rate.ErrRedisUnavailable) {
			return nil, provider.Unavailable(err)
		}
		return nil, &provider.Error{Code: provider.CodeInvalidCredentials, Message: msgInvalidCredentials, Status: 400}
	}
	if !acct.confirmed() {
		return nil, &provider.Error{Code: provider.CodeEmailNotConfirmed, Message: msgEmailNotConfirmed, Status: 400}
	}

	_ = p.limiter.Reset(ctx, scopeSignIn, email)
	p.maybeRehash(ctx, acct, pw)

	sess, err := p.establish(ctx, acct)
	if err != nil {
		return nil, err
	}
	p.emitter.Emit(provider.EventSignedIn, sess)
	user := sess.User
	return &user, nil
}

func (p *Provider) SignUp(ctx context.Context, params provider.SignUpParams) (*provider.User, error) {
	email := normalizeEmail(params.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &provider.Error{Code: provider.CodeValidation, Message: "Unable to validate email address: invalid format", Status: 400}
	}
	if err := p.hasher.CheckLength(params.Password); err != nil {
		return nil, &provider.Error{Code: provider.CodeWeakPassword, Message: weakPasswordMessage(err), Status: 422, Err: err}
	}

	existing, err := p.loadAccount(ctx, email)
	switch {
	case err == nil && existing.confirmed():
		return nil, &provider.Error{Code: provider.CodeUserExists, Message: msgUserExists, Status: 422}
	case err != nil && !errors.Is(err, errAccountNotFound):
		return nil, provider.Unavailable(err)
	}

	hash, err := p.hasher.Hash(params.Password)
	if err != nil {
		return nil, &provider.Error{Code: provider.CodeWeakPassword, Message: weakPasswordMessage(err), Status: 422, Err: err}
	}

	acct := &account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     cloneMetadata(params.Metadata),
		CreatedAt:    p.now().UTC().Truncate(time.Second),
	}
	// Re-registering an unconfirmed address keeps its id.
	if existing != nil {
		acct.ID = existing.ID
		acct.CreatedAt = existing.CreatedAt
	}
	if !p.cfg.RequireConfirmation {
		acct.ConfirmedAt = acct.CreatedAt
	}
	if err := p.saveAccount(ctx, acct); err != nil {
		return nil, provider.Unavailable(err)
	}

	if !p.cfg.RequireConfirmation {
		p.materializeProfile(acct)
		sess, err := p.establish(ctx, acct)
		if err != nil {
			return nil, err
		}
		p.emitter.Emit(provider.EventSignedIn, sess)
		return acct.user(), nil
	}

	if err := p.issueCode(ctx, acct, provider.OTPSignup); err != nil {
		return nil, err
	}
	return acct.user(), nil
}

// SignOut revokes the refresh token and clears the persisted session. Signing
// out without a session succeeds.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	var firstErr error
	if current != nil && current.RefreshToken != "" {
		if err := p.redis.Del(ctx, p.refreshKey(current.RefreshToken)).Err(); err != nil {
			firstErr = provider.Unavailable(err)
		}
	}
	if p.storage != nil {
		if err := p.storage.Remove(ctx, p.cfg.StorageKey); err != nil && firstErr == nil {
			firstErr = provider.Unavailable(err)
		}
	}

	p.emitter.Emit(provider.EventSignedOut, nil)
	return firstErr
}

// SendPasswordResetCode issues a recovery code. Unknown addresses succeed
// silently so the endpoint cannot be used to probe for accounts.
func (p *Provider) SendPasswordResetCode(ctx context.Context, email, redirectURL string) error {
	acct, err := p.loadAccount(ctx, email)
	if errors.Is(err, errAccountNotFound) {
		return nil
	}
	if err != nil {
		return provider.Unavailable(err)
	}
	if redirectURL != "" {
		p.logger.WithFields(logrus.Fields{"user_id": acct.ID, "redirect_to": redirectURL}).Debug("recovery requested")
	}
	return p.issueCode(ctx, acct, provider.OTPRecovery)
}

func (p *Provider) VerifyOneTimeCode(ctx context.Context, params provider.VerifyParams) (*provider.User, error) {
	if params.Purpose != provider.OTPSignup && params.Purpose != provider.OTPRecovery {
		return nil, &provider.Error{Code: provider.CodeValidation, Message: "unsupported verification type", Status: 400}
	}
	email := normalizeEmail(params.Email)

	rec, err := p.codes.Consume(ctx, string(params.Purpose), email, internal.HashCode(params.Code), p.cfg.MaxCodeAttempts)
	if err != nil {
		if errors.Is(err, stores.ErrCodeRedisUnavailable) {
			return nil, provider.Unavailable(err)
		}
		return nil, &provider.Error{Code: provider.CodeOTPExpired, Message: msgOTPExpired, Status: 403, Err: err}
	}

	acct, err := p.loadAccount(ctx, email)
	if err != nil {
		if errors.Is(err, errAccountNotFound) {
			return nil, &provider.Error{Code: provider.CodeOTPExpired, Message: msgOTPExpired, Status: 403}
		}
		return nil, provider.Unavailable(err)
	}
	if acct.ID != rec.UserID {
		return nil, &provider.Error{Code: provider.CodeOTPExpired, Message: msgOTPExpired, Status: 403}
	}

	if !acct.confirmed() {
		acct.ConfirmedAt = p.now().UTC().Truncate(time.Second)
		if err := p.setAccountField(ctx, email, "confirmed_at", strconv.FormatInt(acct.ConfirmedAt.Unix(), 10)); err != nil {
			return nil, provider.Unavailable(err)
		}
		p.materializeProfile(acct)
	}

	sess, err := p.establish(ctx, acct)
	if err != nil {
		return nil, err
	}
	p.emitter.Emit(provider.EventSignedIn, sess)
	if params.Purpose == provider.OTPRecovery {
		p.emitter.Emit(provider.EventPasswordRecovery, sess)
	}
	user := sess.User
	return &user, nil
}

func (p *Provider) UpdatePassword(ctx context.Context, newPassword string) error {
	current := p.Session()
	if current == nil {
		return &provider.Error{Code: provider.CodeSessionMissing, Message: msgSessionMissing, Status: 401}
	}
	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return &provider.Error{Code: provider.CodeWeakPassword, Message: weakPasswordMessage(err), Status: 422, Err: err}
	}
	if err := p.setAccountField(ctx, current.User.Email, "password_hash", hash); err != nil {
		return provider.Unavailable(err)
	}
	p.emitter.Emit(provider.EventUserUpdated, current)
	return nil
}

// ResendCode re-issues a pending code. Confirmed or unknown accounts succeed
// without sending anything.
func (p *Provider) ResendCode(ctx context.Context, email string, purpose provider.OTPPurpose) error {
	acct, err := p.loadAccount(ctx, email)
	if errors.Is(err, errAccountNotFound) {
		return nil
	}
	if err != nil {
		return provider.Unavailable(err)
	}
	if purpose == provider.OTPSignup && acct.confirmed() {
		return nil
	}
	return p.issueCode(ctx, acct, purpose)
}

// Refresh rotates the refresh token and emits TOKEN_REFRESHED.
func (p *Provider) Refresh(ctx context.Context) (*provider.Session, error) {
	current := p.Session()
	if current == nil || current.RefreshToken == "" {
		return nil, &provider.Error{Code: provider.CodeSessionMissing, Message: msgSessionMissing, Status: 401}
	}
	sess, err := p.exchangeRefresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	p.emitter.Emit(provider.EventTokenRefreshed, sess)
	return sess, nil
}

// Wait blocks until delayed profile materializations have run.
func (p *Provider) Wait() {
	p.triggers.Wait()
}

func (p *Provider) issueCode(ctx context.Context, acct *account, purpose provider.OTPPurpose) error {
	if err := p.limiter.Hit(ctx, scopeCodeSend, acct.Email); err != nil {
		return p.limitError(err)
	}

	code, err := internal.NewOTPCode(p.cfg.CodeDigits)
	if err != nil {
		return provider.Unavailable(err)
	}
	rec := &stores.CodeRecord{
		UserID:    acct.ID,
		CodeHash:  internal.HashCode(code),
		ExpiresAt: p.now().Add(p.cfg.CodeTTL).Unix(),
	}
	if err := p.codes.Save(ctx, string(purpose), acct.Email, rec, p.cfg.CodeTTL); err != nil {
		return provider.Unavailable(err)
	}
	if err := p.mailer.SendCode(ctx, acct.Email, purpose, code); err != nil {
		return provider.Unavailable(fmt.Errorf("send code: %w", err))
	}
	return nil
}

func (p *Provider) limitError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return &provider.Error{Code: provider.CodeRateLimited, Message: msgRateLimited, Status: 429, Err: err}
	}
	return provider.Unavailable(err)
}

func (p *Provider) maybeRehash(ctx context.Context, acct *account, pw string) {
	need, err := p.hasher.NeedsRehash(acct.PasswordHash)
	if err != nil || !need {
		return
	}
	hash, err := p.hasher.Hash(pw)
	if err != nil {
		return
	}
	if err := p.setAccountField(ctx, acct.Email, "password_hash", hash); err != nil {
		p.logger.WithError(err).WithField("user_id", acct.ID).Warn("password rehash not saved")
	}
}

func weakPasswordMessage(err error) string {
	if errors.Is(err, password.ErrTooLong) {
		return "Password is too long"
	}
	return "Password should be longer"
}
