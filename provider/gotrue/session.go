package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/MrEthical07/storeauth/jwt"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
)

const restoreTimeout = 10 * time.Second

func decodePayload(raw map[string]any) (*sessionPayload, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var p sessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func userFromMap(raw map[string]any) *provider.User {
	if id, _ := raw["id"].(string); id == "" {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var u provider.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil
	}
	return &u
}

// adopt makes s the current session, filling gaps from the access token,
// and persists it.
func (c *Client) adopt(ctx context.Context, s *provider.Session) *provider.Session {
	sess := *s
	if sess.ExpiresAt <= 0 && sess.ExpiresIn > 0 {
		sess.ExpiresAt = c.now().Unix() + sess.ExpiresIn
	}
	fillFromClaims(&sess)

	c.mu.Lock()
	c.current = &sess
	c.mu.Unlock()

	c.persist(ctx, &sess)
	out := sess
	return &out
}

// fillFromClaims recovers identity and expiry from the access token when the
// response omitted them.
func fillFromClaims(s *provider.Session) {
	if s.User.ID != "" && s.ExpiresAt > 0 {
		return
	}
	claims, err := jwt.ParseUnverified(s.AccessToken)
	if err != nil {
		return
	}
	if s.User.ID == "" {
		s.User.ID = claims.Subject
		s.User.Email = claims.Email
		s.User.Phone = claims.Phone
		s.User.UserMetadata = claims.UserMetadata
		s.User.AppMetadata = claims.AppMetadata
	}
	if s.ExpiresAt <= 0 && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
	}
}

func (c *Client) persist(ctx context.Context, s *provider.Session) {
	blob, err := session.Encode(s)
	if err == nil {
		err = c.storage.Set(ctx, c.cfg.StorageKey, blob)
	}
	if err != nil {
		c.logger.WithError(err).Warn("session not persisted")
	}
}

func (c *Client) clear(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	if err := c.storage.Remove(ctx, c.cfg.StorageKey); err != nil {
		c.logger.WithError(err).Warn("persisted session not removed")
	}
}

// restoreOnce loads the persisted blob on first Subscribe. A blob whose
// access token has expired is refreshed; one that cannot be refreshed is
// dropped.
func (c *Client) restoreOnce() {
	c.mu.Lock()
	if c.restored {
		c.mu.Unlock()
		return
	}
	c.restored = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	blob, err := c.storage.Get(ctx, c.cfg.StorageKey)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			c.logger.WithError(err).Warn("persisted session unreadable")
		}
		return
	}
	sess, err := session.Decode(blob)
	if err != nil || sess.AccessToken == "" {
		_ = c.storage.Remove(ctx, c.cfg.StorageKey)
		return
	}
	fillFromClaims(sess)

	if !sess.Expired(c.now()) && sess.User.ID != "" {
		c.mu.Lock()
		if c.current == nil {
			c.current = sess
		}
		c.mu.Unlock()
		return
	}

	if sess.RefreshToken != "" {
		_, err := c.exchange(ctx, sess.RefreshToken)
		if err == nil {
			return
		}
		c.logger.WithError(err).Info("persisted session could not be refreshed")
	}
	c.clear(ctx)
}

func (c *Client) exchange(ctx context.Context, refreshToken string) (*provider.Session, error) {
	var out provider.Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &out)
	if err != nil {
		return nil, err
	}
	return c.adopt(ctx, &out), nil
}

// Refresh exchanges the refresh token and emits TOKEN_REFRESHED. A rejected
// refresh token ends the session with SIGNED_OUT.
func (c *Client) Refresh(ctx context.Context) (*provider.Session, error) {
	current := c.Session()
	if current == nil || current.RefreshToken == "" {
		return nil, &provider.Error{Code: provider.CodeSessionMissing, Message: "Auth session missing!", Status: http.StatusUnauthorized}
	}
	sess, err := c.exchange(ctx, current.RefreshToken)
	if err != nil {
		if provider.CodeOf(err) == provider.CodeSessionMissing {
			c.clear(ctx)
			c.emitter.Emit(provider.EventSignedOut, nil)
		}
		return nil, err
	}
	c.emitter.Emit(provider.EventTokenRefreshed, sess)
	return sess, nil
}

// StartAutoRefresh refreshes the session shortly before it expires until ctx
// is done. It returns immediately.
func (c *Client) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshIfDue(ctx)
			}
		}
	}()
}

func (c *Client) refreshIfDue(ctx context.Context) {
	current := c.Session()
	if current == nil || current.RefreshToken == "" {
		return
	}
	if time.Unix(current.ExpiresAt, 0).Sub(c.now()) > c.cfg.RefreshMargin {
		return
	}
	if _, err := c.Refresh(ctx); err != nil && !isCallerCancel(err) {
		c.logger.WithError(err).Warn("auto refresh failed")
	}
}
