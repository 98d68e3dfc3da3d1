package local

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/storeauth/internal"
	"github.com/MrEthical07/storeauth/jwt"
	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
)

const restoreTimeout = 5 * time.Second

// establish mints a fresh session for acct, makes it current and persists it.
func (p *Provider) establish(ctx context.Context, acct *account) (*provider.Session, error) {
	return p.mint(ctx, acct, uuid.NewString())
}

func (p *Provider) mint(ctx context.Context, acct *account, sessionID string) (*provider.Session, error) {
	now := p.now()
	user := acct.user()

	access, expiresAt, err := p.tokens.CreateAccess(acct.ID, jwt.AccessClaims{
		Email:        acct.Email,
		Phone:        user.Phone,
		Role:         jwt.AudienceAuthenticated,
		SessionID:    sessionID,
		UserMetadata: user.UserMetadata,
	}, now)
	if err != nil {
		return nil, provider.Unavailable(err)
	}

	refresh, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, provider.Unavailable(err)
	}
	if err := p.saveRefresh(ctx, refresh, refreshRecord{Email: acct.Email, SessionID: sessionID}); err != nil {
		return nil, provider.Unavailable(err)
	}

	sess := &provider.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(p.tokens.TTL() / time.Second),
		ExpiresAt:    expiresAt.Unix(),
		User:         *user,
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	p.persist(ctx, sess)
	out := *sess
	return &out, nil
}

func (p *Provider) exchangeRefresh(ctx context.Context, token string) (*provider.Session, error) {
	rec, err := p.takeRefresh(ctx, token)
	if err != nil {
		if errors.Is(err, errAccountNotFound) {
			return nil, &provider.Error{Code: provider.CodeSessionMissing, Message: "Invalid Refresh Token: Refresh Token Not Found", Status: 400}
		}
		return nil, provider.Unavailable(err)
	}
	acct, err := p.loadAccount(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, errAccountNotFound) {
			return nil, &provider.Error{Code: provider.CodeSessionMissing, Message: "User from sub claim in JWT does not exist", Status: 403}
		}
		return nil, provider.Unavailable(err)
	}
	return p.mint(ctx, acct, rec.SessionID)
}

func (p *Provider) persist(ctx context.Context, sess *provider.Session) {
	if p.storage == nil {
		return
	}
	blob, err := session.Encode(sess)
	if err == nil {
		err = p.storage.Set(ctx, p.cfg.StorageKey, blob)
	}
	if err != nil {
		p.logger.WithError(err).Warn("session not persisted")
	}
}

// restoreOnce loads the persisted session the first time a listener
// subscribes. An expired access token is exchanged with its refresh token; a
// blob that cannot be used is removed.
func (p *Provider) restoreOnce() {
	p.mu.Lock()
	if p.restored || p.storage == nil {
		p.restored = true
		p.mu.Unlock()
		return
	}
	p.restored = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	blob, err := p.storage.Get(ctx, p.cfg.StorageKey)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			p.logger.WithError(err).Warn("persisted session unreadable")
		}
		return
	}
	sess, err := session.Decode(blob)
	if err != nil {
		_ = p.storage.Remove(ctx, p.cfg.StorageKey)
		return
	}

	if _, err := p.tokens.ParseAccess(sess.AccessToken); err == nil {
		p.mu.Lock()
		if p.current == nil {
			p.current = sess
		}
		p.mu.Unlock()
		return
	}

	if sess.RefreshToken != "" {
		if _, err := p.exchangeRefresh(ctx, sess.RefreshToken); err == nil {
			return
		}
	}
	p.logger.Debug("persisted session rejected")
	_ = p.storage.Remove(ctx, p.cfg.StorageKey)
}

// materializeProfile writes the application profile row for a newly
// confirmed account.
func (p *Provider) materializeProfile(acct *account) {
	if p.profiles == nil {
		return
	}
	row := profileRow(acct, p.now())

	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.profiles.PutProfile(ctx, row); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{"user_id": acct.ID}).Error("profile materialization failed")
		}
	}

	if p.cfg.TriggerDelay <= 0 {
		write()
		return
	}
	p.triggers.Add(1)
	time.AfterFunc(p.cfg.TriggerDelay, func() {
		defer p.triggers.Done()
		write()
	})
}

func profileRow(acct *account, now time.Time) profile.Row {
	meta := func(key string) string {
		v, _ := acct.Metadata[key].(string)
		return v
	}
	role := meta("role")
	if role == "" {
		role = "user"
	}
	created := acct.CreatedAt
	if created.IsZero() {
		created = now.UTC()
	}
	return profile.Row{
		ID:         acct.ID,
		Email:      acct.Email,
		Role:       role,
		FullName:   meta("full_name"),
		Phone:      meta("phone"),
		Currency:   meta("currency"),
		CountryID:  meta("country_id"),
		IsVerified: true,
		// Sellers wait for admin approval.
		IsApproved: role != "seller",
		CreatedAt:  created,
		UpdatedAt:  now.UTC(),
	}
}
