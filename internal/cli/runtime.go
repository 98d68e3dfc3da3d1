package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/storeauth"
	"github.com/MrEthical07/storeauth/jwt"
	"github.com/MrEthical07/storeauth/password"
	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider"
	"github.com/MrEthical07/storeauth/provider/gotrue"
	"github.com/MrEthical07/storeauth/provider/local"
	"github.com/MrEthical07/storeauth/session"
)

// runtime owns one wired store and the backends behind it.
type runtime struct {
	store    *storeauth.Store
	provider provider.Provider
	gotrue   *gotrue.Client
	local    *local.Provider
	logger   *logrus.Logger
	closers  []func() error
}

// openRuntime wires the configured backends. redisClient overrides the
// configured Redis address when non-nil.
func openRuntime(cfg FileConfig, redisClient redis.UniversalClient, logOut io.Writer) (_ *runtime, err error) {
	rt := &runtime{logger: storeauth.NewLogger(cfg.Store.Logging, logOut)}
	defer func() {
		if err != nil {
			_ = rt.close()
		}
	}()

	if redisClient == nil && cfg.needsRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, client.Close)
		redisClient = client
	}

	storage, err := openStorage(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	profiles, err := rt.openProfiles(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider.Kind {
	case ProviderGoTrue:
		gcfg := cfg.Provider.GoTrue
		gcfg.StorageKey = cfg.Store.Bootstrap.StorageKey
		client, err := gotrue.New(gcfg, gotrue.WithStorage(storage), gotrue.WithLogger(rt.logger))
		if err != nil {
			return nil, fmt.Errorf("gotrue provider: %w", err)
		}
		if rest, ok := profiles.(*profile.RESTStore); ok {
			rest.AccessToken = func() string {
				if s := client.Session(); s != nil {
					return s.AccessToken
				}
				return ""
			}
		}
		rt.gotrue = client
		rt.provider = client
	case ProviderLocal:
		p, err := openLocal(cfg, redisClient, profiles, storage, rt.logger)
		if err != nil {
			return nil, err
		}
		rt.local = p
		rt.provider = p
	}

	b := storeauth.New().
		WithConfig(cfg.Store).
		WithProvider(rt.provider).
		WithProfileStore(profiles).
		WithCredentialStorage(storage).
		WithLogger(rt.logger)
	if cfg.Store.Audit.Enabled {
		sinks := []storeauth.AuditSink{storeauth.NewLogrusSink(rt.logger.WithField("component", "audit"))}
		if cfg.AuditFile != "" {
			f, err := os.OpenFile(cfg.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return nil, fmt.Errorf("open audit file: %w", err)
			}
			rt.closers = append(rt.closers, f.Close)
			sinks = append(sinks, storeauth.NewJSONWriterSink(f))
		}
		b.WithAuditSink(storeauth.FanoutSink(sinks...))
	}
	store, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}
	rt.store = store
	return rt, nil
}

func openStorage(cfg FileConfig, client redis.UniversalClient) (session.Storage, error) {
	switch cfg.Storage.Kind {
	case StorageFile:
		return session.NewFileStorage(cfg.Storage.Dir), nil
	case StorageRedis:
		return session.NewRedisStorage(client, cfg.Storage.Redis.Prefix), nil
	case StorageMemory:
		return session.NewMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
}

func (rt *runtime) openProfiles(cfg FileConfig, client redis.UniversalClient) (profile.Store, error) {
	switch cfg.Profiles.Kind {
	case ProfilesRedis:
		return profile.NewRedisStore(client, cfg.Profiles.Redis.Prefix), nil
	case ProfilesREST:
		rest, err := profile.NewRESTStore(cfg.Profiles.REST, nil)
		if err != nil {
			return nil, fmt.Errorf("rest profiles: %w", err)
		}
		return rest, nil
	case ProfilesSQL:
		db, err := sql.Open(cfg.Profiles.SQL.Driver, cfg.Profiles.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Profiles.SQL.Driver, err)
		}
		rt.closers = append(rt.closers, db.Close)
		placeholder := profile.PlaceholderDollar
		if cfg.Profiles.SQL.Driver == "sqlite3" {
			placeholder = profile.PlaceholderQuestion
		}
		return profile.NewSQLStore(db, cfg.Profiles.SQL.Table, placeholder)
	}
	return nil, fmt.Errorf("unknown profiles kind %q", cfg.Profiles.Kind)
}

func openLocal(cfg FileConfig, client redis.UniversalClient, profiles profile.Store, storage session.Storage, logger *logrus.Logger) (*local.Provider, error) {
	lc := cfg.Provider.Local
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     lc.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(lc.SigningKey),
		Audience:      jwt.AudienceAuthenticated,
	})
	if err != nil {
		return nil, fmt.Errorf("local tokens: %w", err)
	}
	hasher, err := password.NewHasher(lc.Password)
	if err != nil {
		return nil, fmt.Errorf("local hasher: %w", err)
	}

	pcfg := lc.Config
	pcfg.StorageKey = cfg.Store.Bootstrap.StorageKey
	deps := local.Deps{
		Redis:   client,
		Tokens:  tokens,
		Hasher:  hasher,
		Mailer:  local.LogMailer{Logger: logger.WithField("component", "mailer")},
		Storage: storage,
		Logger:  logger,
	}
	if w, ok := profiles.(profile.Writer); ok {
		deps.Profiles = w
	}
	return local.New(pcfg, deps)
}

// start runs the store and waits for the initial session check.
func (rt *runtime) start(ctx context.Context) error {
	if err := rt.store.Start(ctx); err != nil {
		return err
	}
	select {
	case <-rt.store.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *runtime) close() error {
	if rt == nil {
		return nil
	}
	if rt.store != nil {
		rt.store.Dispose()
	}
	if rt.local != nil {
		rt.local.Wait()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
