package storeauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/session"
	"github.com/sirupsen/logrus"
)

// ErrMissingStorage is returned by Build when the credential pre-flight is
// enabled without a credential storage.
var ErrMissingStorage = errors.New("credential storage required when PurgeStaleCredentials is enabled")

// Builder wires a Store. A Builder builds exactly once.
type Builder struct {
	config Config

	provider  provider.Provider
	profiles  profile.Store
	storage   session.Storage
	auditSink AuditSink
	logger    logrus.FieldLogger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the auth provider the store subscribes to.
func (b *Builder) WithProvider(p provider.Provider) *Builder {
	b.provider = p
	return b
}

// WithProfileStore sets the profile lookup backend.
func (b *Builder) WithProfileStore(ps profile.Store) *Builder {
	b.profiles = ps
	return b
}

// WithCredentialStorage sets the storage holding the provider's persisted
// credential blob. It must be the same storage the provider reads.
func (b *Builder) WithCredentialStorage(st session.Storage) *Builder {
	b.storage = st
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger overrides the logger built from Config.Logging.
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for expiry checks and fallback timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns an unstarted Store.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, ErrMissingProvider
	}
	if b.profiles == nil {
		return nil, ErrMissingProfileStore
	}
	if cfg.Bootstrap.PurgeStaleCredentials && b.storage == nil {
		return nil, ErrMissingStorage
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Logging, nil)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	return newStore(cfg, b.provider, b.profiles, b.storage, logger, b.auditSink, now), nil
}
