// Package config loads ccnetcore settings from ccnetcore.yaml, CCNETCORE_*
// environment variables and defaults, in increasing order of precedence:
// defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
)

// EnvPrefix prefixes every environment override, e.g. CCNETCORE_DATABASE_DSN
const EnvPrefix = "CCNETCORE"

// Config represents the ccnetcore configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	ORM      ORMConfig      `mapstructure:"orm"`
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig selects the driver, connection string and pool limits
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Dialect overrides the dialect derived from Driver
	Dialect          string        `mapstructure:"dialect"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
}

// ORMConfig tunes row mapping and table bootstrap
type ORMConfig struct {
	MappingPolicy        string        `mapstructure:"mapping_policy"`
	BootstrapInterval    time.Duration `mapstructure:"bootstrap_interval"`
	BootstrapMaxInterval time.Duration `mapstructure:"bootstrap_max_interval"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// CacheConfig represents the redis snapshot cache configuration
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

var defaults = map[string]any{
	"database.driver":            "sqlite3",
	"database.dsn":               "ccnetcore.db",
	"database.dialect":           "",
	"database.statement_timeout": 30 * time.Second,
	"database.max_open_conns":    0,
	"orm.mapping_policy":         "fail_fast",
	"orm.bootstrap_interval":     500 * time.Millisecond,
	"orm.bootstrap_max_interval": 30 * time.Second,
	"log.level":                  "info",
	"log.development":            false,
	"cache.enabled":              false,
	"cache.addr":                 "localhost:6379",
	"cache.password":             "",
	"cache.db":                   0,
	"cache.prefix":               "ccnetcore:",
	"cache.ttl":                  10 * time.Minute,
	"metrics.namespace":          "ccnetcore",
}

// Load reads the configuration. An empty cfgFile searches ccnetcore.yaml in the
// working directory and in $HOME/.ccnetcore; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ccnetcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ccnetcore"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked by decoding alone
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}
	if _, err := c.DialectName(); err != nil {
		return err
	}
	if _, err := query.ParseMappingPolicy(c.ORM.MappingPolicy); err != nil {
		return fmt.Errorf("orm.mapping_policy: %w", err)
	}
	if c.Database.StatementTimeout < 0 {
		return fmt.Errorf("database.statement_timeout must not be negative, got %s", c.Database.StatementTimeout)
	}
	if c.ORM.BootstrapInterval <= 0 || c.ORM.BootstrapMaxInterval < c.ORM.BootstrapInterval {
		return fmt.Errorf("orm.bootstrap_interval must be positive and not above orm.bootstrap_max_interval")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when the cache is enabled")
	}
	return nil
}

// DialectName returns the configured dialect, or the one registered for the driver
func (c *Config) DialectName() (string, error) {
	if c.Database.Dialect != "" {
		d, err := dialect.Get(c.Database.Dialect)
		if err != nil {
			return "", fmt.Errorf("database.dialect: %w", err)
		}
		return d.Name(), nil
	}
	d, err := dialect.ForDriver(c.Database.Driver)
	if err != nil {
		return "", fmt.Errorf("database.driver: %w", err)
	}
	return d.Name(), nil
}

// MappingPolicy returns the parsed orm.mapping_policy
func (c *Config) MappingPolicy() query.MappingPolicy {
	p, _ := query.ParseMappingPolicy(c.ORM.MappingPolicy)
	return p
}
