package gotrue

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/storeauth/provider"
)

// sessionPayload is the token endpoint response. Signup and verify return
// the same shape when a session is issued, or a bare user otherwise.
type sessionPayload struct {
	provider.Session
}

func (p *sessionPayload) hasSession() bool {
	return p.AccessToken != ""
}

// bareUser returns the user from a user-only response.
func (p *sessionPayload) bareUser(raw map[string]any) *provider.User {
	if p.User.ID != "" {
		u := p.User
		return &u
	}
	return userFromMap(raw)
}

func (c *Client) Subscribe(listener provider.Listener) provider.Subscription {
	c.restoreOnce()
	return c.emitter.Subscribe(c.Session, listener)
}

// Session returns a copy of the active session, or nil.
func (c *Client) Session() *provider.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	out := *c.current
	return &out
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*provider.User, error) {
	var out provider.Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &out)
	if err != nil {
		return nil, err
	}
	sess := c.adopt(ctx, &out)
	c.emitter.Emit(provider.EventSignedIn, sess)
	user := sess.User
	return &user, nil
}

func (c *Client) SignUp(ctx context.Context, params provider.SignUpParams) (*provider.User, error) {
	var raw map[string]any
	query := url.Values{}
	if params.RedirectTo != "" {
		query.Set("redirect_to", params.RedirectTo)
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/signup",
		query:  query,
		body: map[string]any{
			"email":    normalize(params.Email),
			"password": params.Password,
			"data":     params.Metadata,
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	payload, err := decodePayload(raw)
	if err != nil {
		return nil, provider.Unavailable(err)
	}
	// Projects with auto-confirm issue a session straight away.
	if payload.hasSession() {
		sess := c.adopt(ctx, &payload.Session)
		c.emitter.Emit(provider.EventSignedIn, sess)
		user := sess.User
		return &user, nil
	}
	user := payload.bareUser(raw)
	if user == nil {
		return nil, provider.Unavailable(errors.New("signup response carried no user"))
	}
	return user, nil
}

// SignOut revokes the session server-side and always clears it locally.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Session()

	var err error
	if current != nil {
		err = c.do(ctx, request{
			method: http.MethodPost,
			path:   "/logout",
			bearer: current.AccessToken,
		}, nil)
		// Already revoked or expired server-side.
		if code := provider.CodeOf(err); err != nil && (code == provider.CodeSessionMissing || statusOf(err) == http.StatusUnauthorized || statusOf(err) == http.StatusNotFound) {
			err = nil
		}
	}

	c.clear(ctx)
	c.emitter.Emit(provider.EventSignedOut, nil)
	return err
}

func (c *Client) SendPasswordResetCode(ctx context.Context, email, redirectURL string) error {
	query := url.Values{}
	if redirectURL != "" {
		query.Set("redirect_to", redirectURL)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/recover",
		query:  query,
		body:   map[string]string{"email": normalize(email)},
	}, nil)
}

func (c *Client) VerifyOneTimeCode(ctx context.Context, params provider.VerifyParams) (*provider.User, error) {
	var raw map[string]any
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/verify",
		body: map[string]string{
			"type":  string(params.Purpose),
			"email": normalize(params.Email),
			"token": strings.TrimSpace(params.Code),
		},
	}, &raw)
	if err != nil {
		return nil, err
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, provider.Unavailable(err)
	}
	if !payload.hasSession() {
		user := payload.bareUser(raw)
		if user == nil {
			return nil, provider.Unavailable(errors.New("verify response carried no user"))
		}
		return user, nil
	}

	sess := c.adopt(ctx, &payload.Session)
	c.emitter.Emit(provider.EventSignedIn, sess)
	if params.Purpose == provider.OTPRecovery {
		c.emitter.Emit(provider.EventPasswordRecovery, sess)
	}
	user := sess.User
	return &user, nil
}

func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	current := c.Session()
	if current == nil {
		return &provider.Error{Code: provider.CodeSessionMissing, Message: "Auth session missing!", Status: http.StatusUnauthorized}
	}
	var user provider.User
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/user",
		body:   map[string]string{"password": newPassword},
		bearer: current.AccessToken,
	}, &user)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.current != nil && user.ID != "" {
		c.current.User = user
	}
	updated := c.current
	c.mu.Unlock()
	if updated != nil {
		c.persist(ctx, updated)
	}
	c.emitter.Emit(provider.EventUserUpdated, c.Session())
	return nil
}

func (c *Client) ResendCode(ctx context.Context, email string, purpose provider.OTPPurpose) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/resend",
		body:   map[string]string{"type": string(purpose), "email": normalize(email)},
	}, nil)
}

func statusOf(err error) int {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
