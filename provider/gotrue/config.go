package gotrue

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/storeauth/session"
)

// Config controls the hosted auth client.
type Config struct {
	// URL is the auth API base, e.g. https://project.example.co/auth/v1.
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`

	Timeout    time.Duration `mapstructure:"timeout"`
	StorageKey string        `mapstructure:"storage_key"`

	// RefreshMargin is how long before expiry auto-refresh kicks in.
	RefreshMargin time.Duration `mapstructure:"refresh_margin"`
	// RefreshInterval is how often auto-refresh checks the session.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker around API calls.
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// DefaultConfig returns defaults matching the hosted platform's client SDK.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		StorageKey:      session.DefaultKey,
		RefreshMargin:   60 * time.Second,
		RefreshInterval: 30 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:  100,
			Interval:     5 * time.Second,
			Timeout:      3 * time.Second,
			MinRequests:  3,
			FailureRatio: 0.6,
		},
	}
}

func (c *Config) normalize() error {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("gotrue: url must be absolute")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("gotrue: api_key is required")
	}

	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.StorageKey == "" {
		c.StorageKey = d.StorageKey
	}
	if c.RefreshMargin <= 0 {
		c.RefreshMargin = d.RefreshMargin
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.Breaker.Interval <= 0 {
		c.Breaker = d.Breaker
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		c.Breaker.FailureRatio = d.Breaker.FailureRatio
	}
	return nil
}
