package storeauth

import (
	"strings"
	"time"

	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
)

// Role is the effective storefront role used for authorization decisions.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole normalizes a stored or embedded role value. Empty and unknown
// values map to RoleUser.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleSeller, RoleAdmin:
		return r
	default:
		return RoleUser
	}
}

// Valid reports whether r is one of the storefront roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSeller || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// Identity attribute keys embedded at sign-up and read back by the
// profile fallback.
const (
	AttrRole      = "role"
	AttrFullName  = "full_name"
	AttrPhone     = "phone"
	AttrCurrency  = "currency"
	AttrCountryID = "country_id"
)

// AuthUser is the identity as the auth provider reports it.
type AuthUser struct {
	ID        string         `json:"id" yaml:"id"`
	Email     string         `json:"email,omitempty" yaml:"email,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Attr returns a string identity attribute or "".
func (u *AuthUser) Attr(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	v, _ := u.Metadata[key].(string)
	return v
}

func authUserFrom(u provider.User) *AuthUser {
	out := &AuthUser{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if len(u.UserMetadata) > 0 {
		out.Metadata = make(map[string]any, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (u *AuthUser) clone() *AuthUser {
	if u == nil {
		return nil
	}
	out := *u
	if u.Metadata != nil {
		out.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Profile is the application-level user record. Fallback is true when the
// record was synthesized from identity attributes instead of storage.
type Profile struct {
	ID         string    `json:"id" yaml:"id"`
	Email      string    `json:"email" yaml:"email"`
	Role       Role      `json:"role" yaml:"role"`
	FullName   string    `json:"full_name" yaml:"full_name"`
	Phone      string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Currency   string    `json:"currency,omitempty" yaml:"currency,omitempty"`
	CountryID  string    `json:"country_id,omitempty" yaml:"country_id,omitempty"`
	IsVerified bool      `json:"is_verified" yaml:"is_verified"`
	IsApproved bool      `json:"is_approved" yaml:"is_approved"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Fallback   bool      `json:"fallback" yaml:"fallback"`
}

func profileFromRow(row *profile.Row) *Profile {
	return &Profile{
		ID:         row.ID,
		Email:      row.Email,
		Role:       ParseRole(row.Role),
		FullName:   row.FullName,
		Phone:      row.Phone,
		Currency:   row.Currency,
		CountryID:  row.CountryID,
		IsVerified: row.IsVerified,
		IsApproved: row.IsApproved,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// State is the conceptual session state.
type State uint8

const (
	StateBootstrapping State = iota
	StateUnauthenticated
	StateAuthenticatedPendingProfile
	StateAuthenticatedResolved
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedPendingProfile:
		return "authenticated_pending_profile"
	case StateAuthenticatedResolved:
		return "authenticated_resolved"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable copy of the session state. AuthRole is empty
// while no role is trusted.
type Snapshot struct {
	User            *Profile  `json:"user" yaml:"user"`
	CurrentAuthUser *AuthUser `json:"current_auth_user" yaml:"current_auth_user"`
	AuthRole        Role      `json:"auth_role" yaml:"auth_role"`
	RoleTrusted     bool      `json:"role_trusted" yaml:"role_trusted"`
	Loading         bool      `json:"loading" yaml:"loading"`
	State           State     `json:"state" yaml:"state"`
}

// Authenticated reports whether a provider session is active.
func (s Snapshot) Authenticated() bool {
	return s.CurrentAuthUser != nil
}

// OperationError is the normalized failure returned by store operations.
// Message is safe to show to an end user.
type OperationError struct {
	Message string        `json:"message" yaml:"message"`
	Code    provider.Code `json:"code,omitempty" yaml:"code,omitempty"`
	Err     error         `json:"-" yaml:"-"`
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Result is the uniform outcome of a store operation. Role is set by SignIn,
// ConfirmSignUp and SignOut.
type Result struct {
	Success bool            `json:"success" yaml:"success"`
	Role    Role            `json:"role,omitempty" yaml:"role,omitempty"`
	Error   *OperationError `json:"error,omitempty" yaml:"error,omitempty"`
}

// SignUpInput carries account creation input. Role defaults to RoleUser.
type SignUpInput struct {
	Email     string
	Password  string
	Role      Role
	FullName  string
	Currency  string
	Phone     string
	CountryID string
}

func (in SignUpInput) metadata() map[string]any {
	role := in.Role
	if !role.Valid() {
		role = RoleUser
	}
	md := map[string]any{
		AttrRole:     string(role),
		AttrFullName: in.FullName,
	}
	if in.Currency != "" {
		md[AttrCurrency] = in.Currency
	}
	if in.Phone != "" {
		md[AttrPhone] = in.Phone
	}
	if in.CountryID != "" {
		md[AttrCountryID] = in.CountryID
	}
	return md
}
