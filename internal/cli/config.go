package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/storeauth"
	"github.com/MrEthical07/storeauth/password"
	"github.com/MrEthical07/storeauth/profile"
	"github.com/MrEthical07/storeauth/provider/gotrue"
	"github.com/MrEthical07/storeauth/provider/local"
)

// Backend kinds.
const (
	ProviderGoTrue = "gotrue"
	ProviderLocal  = "local"

	ProfilesREST  = "rest"
	ProfilesRedis = "redis"
	ProfilesSQL   = "sql"

	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// EnvPrefix namespaces environment overrides, e.g. STOREAUTH_REDIS_ADDR.
const EnvPrefix = "STOREAUTH"

// FileConfig is the on-disk CLI configuration.
type FileConfig struct {
	Store    storeauth.Config `mapstructure:"store"`
	Provider ProviderConfig   `mapstructure:"provider"`
	Profiles ProfilesConfig   `mapstructure:"profiles"`
	Storage  StorageConfig    `mapstructure:"storage"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Serve    ServeConfig      `mapstructure:"serve"`
	// AuditFile, when set, appends audit events as JSON lines alongside
	// the log output.
	AuditFile string `mapstructure:"audit_file"`
}

type ProviderConfig struct {
	Kind   string        `mapstructure:"kind"`
	GoTrue gotrue.Config `mapstructure:"gotrue"`
	Local  LocalConfig   `mapstructure:"local"`
}

// LocalConfig extends the local provider settings with its key material.
type LocalConfig struct {
	local.Config `mapstructure:",squash"`

	// SigningKey is the HS256 secret for access tokens (>= 32 bytes).
	SigningKey string          `mapstructure:"signing_key"`
	AccessTTL  time.Duration   `mapstructure:"access_ttl"`
	Password   password.Config `mapstructure:"password"`
}

type ProfilesConfig struct {
	Kind  string             `mapstructure:"kind"`
	REST  profile.RESTConfig `mapstructure:"rest"`
	SQL   SQLConfig          `mapstructure:"sql"`
	Redis RedisPrefix        `mapstructure:"redis"`
}

type SQLConfig struct {
	// Driver is a registered database/sql driver: pgx or sqlite3.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

type RedisPrefix struct {
	Prefix string `mapstructure:"prefix"`
}

type StorageConfig struct {
	Kind  string      `mapstructure:"kind"`
	Dir   string      `mapstructure:"dir"`
	Redis RedisPrefix `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServeConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	AutoRefresh     bool          `mapstructure:"auto_refresh"`
}

// DefaultFileConfig targets the local provider on a local Redis.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Store: storeauth.DefaultConfig(),
		Provider: ProviderConfig{
			Kind:   ProviderLocal,
			GoTrue: gotrue.DefaultConfig(),
			Local: LocalConfig{
				Config:    local.DefaultConfig(),
				AccessTTL: time.Hour,
				Password:  password.DefaultConfig(),
			},
		},
		Profiles: ProfilesConfig{
			Kind:  ProfilesRedis,
			REST:  profile.RESTConfig{Table: "profiles", Timeout: 10 * time.Second},
			SQL:   SQLConfig{Driver: "pgx", Table: "profiles"},
			Redis: RedisPrefix{Prefix: "sfl"},
		},
		Storage: StorageConfig{
			Kind:  StorageFile,
			Dir:   defaultStorageDir(),
			Redis: RedisPrefix{Prefix: "sfl"},
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Serve: ServeConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     10 * time.Second,
			AutoRefresh:     true,
		},
	}
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storeauth"
	}
	return filepath.Join(home, ".storeauth")
}

// secretKeys may come from the environment without appearing in the file.
var secretKeys = []string{
	"provider.gotrue.url",
	"provider.gotrue.api_key",
	"provider.local.signing_key",
	"profiles.rest.base_url",
	"profiles.rest.api_key",
	"profiles.sql.dsn",
	"redis.addr",
	"redis.password",
}

// LoadConfig reads path (optional) and STOREAUTH_* environment overrides on
// top of DefaultFileConfig, then validates the result.
func LoadConfig(path string) (FileConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return FileConfig{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := DefaultFileConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate checks backend selection. Backend constructors validate their
// own settings.
func (c *FileConfig) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	switch c.Provider.Kind {
	case ProviderGoTrue:
	case ProviderLocal:
		if len(c.Provider.Local.SigningKey) < 32 {
			return errors.New("provider.local.signing_key must be at least 32 bytes")
		}
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	switch c.Profiles.Kind {
	case ProfilesREST, ProfilesRedis:
	case ProfilesSQL:
		if c.Profiles.SQL.DSN == "" {
			return errors.New("profiles.sql.dsn is required")
		}
	default:
		return fmt.Errorf("unknown profiles kind %q", c.Profiles.Kind)
	}
	switch c.Storage.Kind {
	case StorageFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required")
		}
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}
	return nil
}

// needsRedis reports whether any selected backend talks to Redis.
func (c *FileConfig) needsRedis() bool {
	return c.Provider.Kind == ProviderLocal ||
		c.Profiles.Kind == ProfilesRedis ||
		c.Storage.Kind == StorageRedis
}
