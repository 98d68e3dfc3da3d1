package provider

import (
	"context"
	"time"
)

// EventKind names an auth state change reported by a provider.
type EventKind string

const (
	// EventInitialSession is delivered once, synchronously, on Subscribe.
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
	// EventPasswordRecovery is emitted after a recovery code established a session.
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
)

// OTPPurpose selects which one-time code flow a verification belongs to.
type OTPPurpose string

const (
	OTPSignup   OTPPurpose = "signup"
	OTPRecovery OTPPurpose = "recovery"
)

// User is the identity as the provider reports it.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
}

// MetadataString returns a string attribute from user metadata or "".
func (u User) MetadataString(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	v, _ := u.UserMetadata[key].(string)
	return v
}

// Session is an active provider session.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || s.ExpiresAt <= now.Unix()
}

// Event is one auth state change. Session is nil for session-less events.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Listener receives provider events.
type Listener func(Event)

// Subscription detaches a listener. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// SignUpParams carries account creation input. Metadata is stored on the
// identity and echoed back in [User.UserMetadata].
type SignUpParams struct {
	Email      string
	Password   string
	Metadata   map[string]any
	RedirectTo string
}

// VerifyParams carries a one-time code verification.
type VerifyParams struct {
	Email   string
	Code    string
	Purpose OTPPurpose
}

// Provider is the auth backend consumed by the session store.
type Provider interface {
	Subscribe(listener Listener) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, params SignUpParams) (*User, error)
	SignOut(ctx context.Context) error
	SendPasswordResetCode(ctx context.Context, email, redirectURL string) error
	VerifyOneTimeCode(ctx context.Context, params VerifyParams) (*User, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	ResendCode(ctx context.Context, email string, purpose OTPPurpose) error
}
