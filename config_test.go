package storeauth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Bootstrap.SafetyTimeout != 10*time.Second {
		t.Fatalf("expected 10s safety timeout, got %v", cfg.Bootstrap.SafetyTimeout)
	}
	if cfg.Profile.MaxAttempts != 3 || cfg.Profile.RetryDelay != time.Second {
		t.Fatalf("unexpected profile defaults %+v", cfg.Profile)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero safety timeout", func(c *Config) { c.Bootstrap.SafetyTimeout = 0 }},
		{"empty storage key", func(c *Config) { c.Bootstrap.StorageKey = "  " }},
		{"negative purge timeout", func(c *Config) { c.Bootstrap.PurgeTimeout = -1 }},
		{"zero event buffer", func(c *Config) { c.Bootstrap.EventBuffer = 0 }},
		{"zero attempts", func(c *Config) { c.Profile.MaxAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Profile.RetryDelay = -time.Second }},
		{"negative attempt timeout", func(c *Config) { c.Profile.AttemptTimeout = -time.Second }},
		{"negative operation timeout", func(c *Config) { c.Auth.OperationTimeout = -time.Second }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLintDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.PasswordResetRedirectURL = "https://shop.test/reset"
	if codes := cfg.Lint().Codes(); len(codes) != 0 {
		t.Fatalf("expected no warnings, got %v", codes)
	}
}

func TestLintWarnings(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"purge_disabled", func(c *Config) { c.Bootstrap.PurgeStaleCredentials = false }},
		{"safety_timeout_long", func(c *Config) { c.Bootstrap.SafetyTimeout = time.Minute }},
		{"safety_timeout_short", func(c *Config) { c.Bootstrap.SafetyTimeout = 100 * time.Millisecond }},
		{"profile_single_attempt", func(c *Config) { c.Profile.MaxAttempts = 1 }},
		{"profile_retry_no_delay", func(c *Config) { c.Profile.RetryDelay = 0 }},
		{"profile_budget_exceeds_safety_timeout", func(c *Config) { c.Profile.MaxAttempts = 20 }},
		{"reset_redirect_missing", func(c *Config) { c.Auth.PasswordResetRedirectURL = "" }},
		{"audit_blocking", func(c *Config) { c.Audit.Enabled = true; c.Audit.DropIfFull = false }},
		{"metrics_disabled", func(c *Config) { c.Metrics.Enabled = false }},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.PasswordResetRedirectURL = "https://shop.test/reset"
			tc.mutate(&cfg)
			if codes := cfg.Lint().Codes(); !containsCode(codes, tc.code) {
				t.Fatalf("expected %s in %v", tc.code, codes)
			}
		})
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	p := &fakeProvider{}
	profiles := newScriptedProfiles()

	if _, err := New().WithProfileStore(profiles).Build(); !errors.Is(err, ErrMissingProvider) {
		t.Fatalf("expected ErrMissingProvider, got %v", err)
	}
	if _, err := New().WithProvider(p).Build(); !errors.Is(err, ErrMissingProfileStore) {
		t.Fatalf("expected ErrMissingProfileStore, got %v", err)
	}
	if _, err := New().WithProvider(p).WithProfileStore(profiles).Build(); !errors.Is(err, ErrMissingStorage) {
		t.Fatalf("expected ErrMissingStorage, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Bootstrap.PurgeStaleCredentials = false
	s, err := New().WithConfig(cfg).WithProvider(p).WithProfileStore(profiles).Build()
	if err != nil {
		t.Fatalf("storage is optional without pre-flight: %v", err)
	}
	s.Dispose()
}

func TestBuilderSingleUse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bootstrap.PurgeStaleCredentials = false
	b := New().WithConfig(cfg).WithProvider(&fakeProvider{}).WithProfileStore(newScriptedProfiles())
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer s.Dispose()
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile.MaxAttempts = 0
	_, err := New().WithConfig(cfg).WithProvider(&fakeProvider{}).WithProfileStore(newScriptedProfiles()).Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if l.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", l.GetLevel())
	}
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}

	text := NewLogger(LoggingConfig{Format: "text"}, &buf)
	if _, ok := text.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", text.Formatter)
	}
	if text.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected default info level, got %v", text.GetLevel())
	}
}
