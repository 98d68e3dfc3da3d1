package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// AudienceAuthenticated is the audience hosted auth platforms stamp on user tokens.
const AudienceAuthenticated = "authenticated"

var (
	ErrInvalidConfig = errors.New("jwt: invalid configuration")
	ErrInvalidKey    = errors.New("jwt: invalid key")
	ErrVerifyOnly    = errors.New("jwt: manager has no signing key")
	ErrNoSubject     = errors.New("jwt: token has no subject")
)

// Config controls token issuance and verification.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// AccessClaims is the access-token payload.
type AccessClaims struct {
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// keyset is the decoded key material for one signing method. sign is nil
// for verify-only managers.
type keyset struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

// Manager signs and verifies access tokens.
type Manager struct {
	ttl      time.Duration
	issuer   string
	audience string
	kid      string
	keys     keyset
	parser   *jwt.Parser
}

// NewManager validates cfg, decodes its keys and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access ttl must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	keys, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		ttl:      cfg.AccessTTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		kid:      strings.TrimSpace(cfg.KeyID),
		keys:     keys,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func loadKeys(cfg Config) (keyset, error) {
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return keyset{}, fmt.Errorf("%w: hs256 secret shorter than 32 bytes", ErrInvalidKey)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		return keyset{method: jwt.SigningMethodHS256, sign: secret, verify: secret}, nil

	case MethodEd25519:
		if len(cfg.PublicKey) == 0 {
			return keyset{}, fmt.Errorf("%w: ed25519 needs a public key", ErrInvalidKey)
		}
		pub, err := decodeEd25519(cfg.PublicKey, ed25519.PublicKeySize, func(b []byte) (any, error) {
			return jwt.ParseEdPublicKeyFromPEM(b)
		})
		if err != nil {
			return keyset{}, err
		}
		ks := keyset{method: jwt.SigningMethodEdDSA, verify: ed25519.PublicKey(pub)}
		if len(cfg.PrivateKey) > 0 {
			priv, err := decodeEd25519(cfg.PrivateKey, ed25519.PrivateKeySize, func(b []byte) (any, error) {
				return jwt.ParseEdPrivateKeyFromPEM(b)
			})
			if err != nil {
				return keyset{}, err
			}
			ks.sign = ed25519.PrivateKey(priv)
		}
		return ks, nil
	}
	return keyset{}, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
}

// decodeEd25519 accepts a raw key of rawSize bytes or a PEM block.
func decodeEd25519(key []byte, rawSize int, fromPEM func([]byte) (any, error)) ([]byte, error) {
	if len(key) == rawSize {
		return key, nil
	}
	parsed, err := fromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch k := parsed.(type) {
	case ed25519.PrivateKey:
		if rawSize == ed25519.PrivateKeySize {
			return k, nil
		}
	case ed25519.PublicKey:
		if rawSize == ed25519.PublicKeySize {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: pem block is %T", ErrInvalidKey, parsed)
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateAccess signs claims for subject. Registered time claims are filled
// from now; the returned time is the token expiry.
func (m *Manager) CreateAccess(subject string, claims AccessClaims, now time.Time) (string, time.Time, error) {
	if m.keys.sign == nil {
		return "", time.Time{}, ErrVerifyOnly
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, ErrNoSubject
	}
	exp := now.Add(m.ttl).Truncate(time.Second)

	claims.Subject = subject
	claims.Issuer = m.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	tok := jwt.NewWithClaims(m.keys.method, claims)
	if m.kid != "" {
		tok.Header["kid"] = m.kid
	}
	signed, err := tok.SignedString(m.keys.sign)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

// ParseAccess verifies tokenStr and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := m.parser.ParseWithClaims(tokenStr, claims, m.lookupKey)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) lookupKey(t *jwt.Token) (any, error) {
	if m.kid != "" {
		if kid, _ := t.Header["kid"].(string); kid != m.kid {
			return nil, fmt.Errorf("%w: unknown kid %q", ErrInvalidKey, kid)
		}
	}
	return m.keys.verify, nil
}

// ParseUnverified decodes tokenStr without checking its signature or expiry.
func ParseUnverified(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}
