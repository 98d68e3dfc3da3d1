package storeauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/storeauth/session"
)

// Config controls the session store. Build clones it; changes after Build
// have no effect.
type Config struct {
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`
	Profile   ProfileConfig   `mapstructure:"profile" yaml:"profile"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig controls the start-up sequence.
type BootstrapConfig struct {
	// SafetyTimeout forces loading to false when the provider never reports
	// INITIAL_SESSION.
	SafetyTimeout time.Duration `mapstructure:"safety_timeout" yaml:"safety_timeout"`
	// StorageKey is the key of the persisted credential blob.
	StorageKey string `mapstructure:"storage_key" yaml:"storage_key"`
	// PurgeStaleCredentials enables the pre-flight expiry check. Disabling it
	// is only useful for providers that manage their own storage.
	PurgeStaleCredentials bool `mapstructure:"purge_stale_credentials" yaml:"purge_stale_credentials"`
	// PurgeTimeout bounds the pre-flight storage round trip.
	PurgeTimeout time.Duration `mapstructure:"purge_timeout" yaml:"purge_timeout"`
	// EventBuffer is the capacity of the provider event queue.
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

/*
====================================
PROFILE CONFIG
====================================
*/

// ProfileConfig controls profile resolution.
type ProfileConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// AttemptTimeout bounds a single lookup. Zero leaves it to the backend.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig controls the operations surface.
type AuthConfig struct {
	// PasswordResetRedirectURL is passed to the provider with reset requests.
	PasswordResetRedirectURL string `mapstructure:"password_reset_redirect_url" yaml:"password_reset_redirect_url"`
	// OperationTimeout bounds every operation. Zero means no extra bound.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" yaml:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full" yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled" yaml:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms" yaml:"enable_latency_histograms"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig selects the default logger. Ignored when Builder.WithLogger
// is used.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" (default) or "text"
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Bootstrap: BootstrapConfig{
			SafetyTimeout:         10 * time.Second,
			StorageKey:            session.DefaultKey,
			PurgeStaleCredentials: true,
			PurgeTimeout:          2 * time.Second,
			EventBuffer:           32,
		},
		Profile: ProfileConfig{
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Auth: AuthConfig{
			OperationTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Bootstrap
	if c.Bootstrap.SafetyTimeout <= 0 {
		return errors.New("Bootstrap SafetyTimeout must be > 0")
	}
	if strings.TrimSpace(c.Bootstrap.StorageKey) == "" {
		return errors.New("Bootstrap StorageKey must not be empty")
	}
	if c.Bootstrap.PurgeTimeout < 0 {
		return errors.New("Bootstrap PurgeTimeout must be >= 0")
	}
	if c.Bootstrap.EventBuffer < 1 {
		return errors.New("Bootstrap EventBuffer must be >= 1")
	}

	// Profile
	if c.Profile.MaxAttempts < 1 {
		return errors.New("Profile MaxAttempts must be >= 1")
	}
	if c.Profile.RetryDelay < 0 {
		return errors.New("Profile RetryDelay must be >= 0")
	}
	if c.Profile.AttemptTimeout < 0 {
		return errors.New("Profile AttemptTimeout must be >= 0")
	}

	// Auth
	if c.Auth.OperationTimeout < 0 {
		return errors.New("Auth OperationTimeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Logging
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return errors.New("Logging Format must be 'json' or 'text'")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration smell.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the ordered list of warnings produced by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but likely unintended. It never
// fails; call Validate for hard errors.
func (c *Config) Lint() LintResult {
	var out LintResult
	add := func(code, msg string) {
		out = append(out, LintWarning{Code: code, Message: msg})
	}

	if !c.Bootstrap.PurgeStaleCredentials {
		add("purge_disabled", "expired persisted credentials are handed to the provider unchecked")
	}
	if c.Bootstrap.SafetyTimeout > 30*time.Second {
		add("safety_timeout_long", "a silent provider keeps the UI loading for more than 30s")
	}
	if c.Bootstrap.SafetyTimeout > 0 && c.Bootstrap.SafetyTimeout < time.Second {
		add("safety_timeout_short", "bootstrap may give up before a slow provider reports INITIAL_SESSION")
	}
	if c.Profile.MaxAttempts == 1 {
		add("profile_single_attempt", "profiles materialized asynchronously will always resolve to the fallback")
	}
	if c.Profile.RetryDelay == 0 && c.Profile.MaxAttempts > 1 {
		add("profile_retry_no_delay", "profile retries run back to back")
	}
	budget := time.Duration(c.Profile.MaxAttempts-1) * c.Profile.RetryDelay
	if c.Profile.AttemptTimeout > 0 {
		budget += time.Duration(c.Profile.MaxAttempts) * c.Profile.AttemptTimeout
	}
	if c.Bootstrap.SafetyTimeout > 0 && budget >= c.Bootstrap.SafetyTimeout {
		add("profile_budget_exceeds_safety_timeout", "profile resolution can outlast the bootstrap safety timeout")
	}
	if c.Auth.PasswordResetRedirectURL == "" {
		add("reset_redirect_missing", "password reset emails will use the provider's default redirect")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", "a slow audit sink blocks auth operations")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", "exporters will report nothing")
	}

	return out
}
