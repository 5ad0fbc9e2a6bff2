// Package config loads qcache configuration from a YAML file and QCACHE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/registry"
	"github.com/roach88/qcache/internal/resultcache"
)

// EnvPrefix prefixes environment overrides: store.mode is read from
// QCACHE_STORE_MODE.
const EnvPrefix = "QCACHE"

// Config keys.
const (
	keyStoreMode      = "store.mode"
	keyStorePath      = "store.path"
	keyStoreDriver    = "store.driver"
	keyStoreUser      = "store.user"
	keyStorePassword  = "store.password"
	keyLogLevel       = "log_level"
	keyLockPolicy     = "lock_policy"
	keyCategoriesFile = "categories_file"
)

// Config is the effective qcache configuration.
type Config struct {
	Store          Store  `mapstructure:"store"`
	LogLevel       string `mapstructure:"log_level"`
	LockPolicy     string `mapstructure:"lock_policy"`
	CategoriesFile string `mapstructure:"categories_file"`
}

// Store configures the document store.
type Store struct {
	Mode   string `mapstructure:"mode"`
	Path   string `mapstructure:"path"`
	Driver string `mapstructure:"driver"`

	// Credentials of a remote store. Never logged.
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Default returns the configuration used when nothing is set: a private
// in-memory store, info logging and the global lock.
func Default() Config {
	return Config{
		Store:      Store{Mode: string(docstore.ModeMemory), Driver: docstore.DriverMattn},
		LogLevel:   "info",
		LockPolicy: resultcache.LockGlobal.String(),
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment overrides apply. A named file that does not
// exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault(keyStoreMode, def.Store.Mode)
	v.SetDefault(keyStorePath, def.Store.Path)
	v.SetDefault(keyStoreDriver, def.Store.Driver)
	v.SetDefault(keyStoreUser, "")
	v.SetDefault(keyStorePassword, "")
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyLockPolicy, def.LockPolicy)
	v.SetDefault(keyCategoriesFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.DocstoreConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("lock_policy: %w", err))
	}
	return errors.Join(errs...)
}

// DocstoreConfig returns the store settings.
func (c Config) DocstoreConfig() docstore.Config {
	return docstore.Config{
		Mode:     docstore.Mode(strings.ToLower(c.Store.Mode)),
		Path:     c.Store.Path,
		Driver:   c.Store.Driver,
		User:     c.Store.User,
		Password: c.Store.Password,
	}
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Policy parses LockPolicy.
func (c Config) Policy() (resultcache.LockPolicy, error) {
	return resultcache.ParseLockPolicy(c.LockPolicy)
}

// Categories returns the category definitions: CategoriesFile when set,
// the built-in set otherwise.
func (c Config) Categories() ([]registry.Category, error) {
	if c.CategoriesFile == "" {
		return registry.DefaultCategories(), nil
	}
	return registry.LoadCategoriesFile(c.CategoriesFile)
}

// LogValue implements slog.LogValuer. Credentials are redacted.
func (c Config) LogValue() slog.Value {
	password := ""
	if c.Store.Password != "" {
		password = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("store.mode", c.Store.Mode),
		slog.String("store.path", c.Store.Path),
		slog.String("store.driver", c.Store.Driver),
		slog.String("store.user", c.Store.User),
		slog.String("store.password", password),
		slog.String("log_level", c.LogLevel),
		slog.String("lock_policy", c.LockPolicy),
		slog.String("categories_file", c.CategoriesFile),
	)
}
