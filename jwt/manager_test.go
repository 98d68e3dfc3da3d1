package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func newHSManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
		Issuer:        "storefront",
		Audience:      AudienceAuthenticated,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := newHSManager(t, time.Hour)
	now := time.Now()

	token, exp, err := m.CreateAccess("u1", AccessClaims{
		Email:        "a@b.com",
		Role:         AudienceAuthenticated,
		UserMetadata: map[string]any{"role": "seller"},
	}, now)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if exp.Before(now.Add(59 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@b.com" || claims.UserMetadata["role"] != "seller" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	m := newHSManager(t, time.Minute)
	token, _, err := m.CreateAccess("u1", AccessClaims{}, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatalf("expected expired token rejection")
	}

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatalf("ParseUnverified should ignore expiry: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestParseAccessRejectsForeignKey(t *testing.T) {
	m := newHSManager(t, time.Hour)
	other, err := NewManager(Config{
		AccessTTL:     time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(strings.Repeat("x", 32)),
		Issuer:        "storefront",
		Audience:      AudienceAuthenticated,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	token, _, err := other.CreateAccess("u1", AccessClaims{}, time.Now())
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	m, err := NewManager(Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	token, _, err := m.CreateAccess("u2", AccessClaims{}, time.Now())
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero ttl", cfg: Config{SigningMethod: MethodHS256, PrivateKey: []byte(strings.Repeat("k", 32))}},
		{name: "short hs key", cfg: Config{AccessTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")}},
		{name: "bad leeway", cfg: Config{AccessTTL: time.Hour, Leeway: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte(strings.Repeat("k", 32))}},
		{name: "unknown method", cfg: Config{AccessTTL: time.Hour, SigningMethod: "rs256"}},
		{name: "ed25519 without public key", cfg: Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseUnverifiedRejectsGarbage(t *testing.T) {
	if _, err := ParseUnverified("not-a-token"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestVerifyOnlyManager(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	signer, err := NewManager(Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	verifier, err := NewManager(Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if _, _, err := verifier.CreateAccess("u1", AccessClaims{}, time.Now()); !errors.Is(err, ErrVerifyOnly) {
		t.Fatalf("expected ErrVerifyOnly, got %v", err)
	}
	token, _, err := signer.CreateAccess("u1", AccessClaims{}, time.Now())
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err != nil {
		t.Fatalf("verify-only ParseAccess failed: %v", err)
	}

	rotated, err := NewManager(Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "k2"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := rotated.ParseAccess(token); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected kid mismatch, got %v", err)
	}
}
