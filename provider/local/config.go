package local

import (
	"errors"
	"time"

	"github.com/MrEthical07/storeauth/session"
)

// Rate limiter scopes.
const (
	scopeSignIn   = "signin"
	scopeCodeSend = "code_send"
)

// Config controls the local provider.
type Config struct {
	Prefix          string        `mapstructure:"prefix"`
	CodeDigits      int           `mapstructure:"code_digits"`
	CodeTTL         time.Duration `mapstructure:"code_ttl"`
	MaxCodeAttempts int           `mapstructure:"max_code_attempts"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`

	SignInAttempts   int           `mapstructure:"signin_attempts"`
	SignInWindow     time.Duration `mapstructure:"signin_window"`
	CodeSendAttempts int           `mapstructure:"code_send_attempts"`
	CodeSendWindow   time.Duration `mapstructure:"code_send_window"`

	// RequireConfirmation holds new accounts until the sign-up code is verified.
	RequireConfirmation bool `mapstructure:"require_confirmation"`
	// TriggerDelay postpones profile materialization after confirmation.
	TriggerDelay time.Duration `mapstructure:"trigger_delay"`
	// StorageKey names the persisted session blob.
	StorageKey string `mapstructure:"storage_key"`
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Prefix:              "sfl",
		CodeDigits:          6,
		CodeTTL:             time.Hour,
		MaxCodeAttempts:     5,
		RefreshTTL:          7 * 24 * time.Hour,
		SignInAttempts:      5,
		SignInWindow:        15 * time.Minute,
		CodeSendAttempts:    3,
		CodeSendWindow:      10 * time.Minute,
		RequireConfirmation: true,
		StorageKey:          session.DefaultKey,
	}
}

func (c Config) validate() error {
	switch {
	case c.CodeDigits < 4 || c.CodeDigits > 10:
		return errors.New("local: code_digits must be between 4 and 10")
	case c.CodeTTL <= 0:
		return errors.New("local: code_ttl must be > 0")
	case c.MaxCodeAttempts <= 0:
		return errors.New("local: max_code_attempts must be > 0")
	case c.RefreshTTL <= 0:
		return errors.New("local: refresh_ttl must be > 0")
	case c.SignInAttempts < 0 || c.CodeSendAttempts < 0:
		return errors.New("local: attempt budgets must be >= 0")
	case c.SignInAttempts > 0 && c.SignInWindow <= 0:
		return errors.New("local: signin_window must be > 0")
	case c.CodeSendAttempts > 0 && c.CodeSendWindow <= 0:
		return errors.New("local: code_send_window must be > 0")
	case c.TriggerDelay < 0:
		return errors.New("local: trigger_delay must be >= 0")
	}
	return nil
}
