// Package config loads coldfetch settings from an optional file and
// COLDFETCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. COLDFETCH_LOG_LEVEL.
const EnvPrefix = "COLDFETCH"

// Delivery modes.
const (
	DeliveryInline = "inline" // on the confinement queue, right after execution
	DeliveryQueue  = "queue"  // on a dedicated serial delivery queue
	DeliveryPool   = "pool"   // on a bounded worker pool
	DeliveryAsync  = "async"  // one goroutine per delivery
)

// DeliveryModes lists the accepted delivery modes.
var DeliveryModes = []string{DeliveryInline, DeliveryQueue, DeliveryPool, DeliveryAsync}

// Config is the full coldfetch configuration.
type Config struct {
	Database string         `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// DeliveryConfig selects where subscription events are delivered.
type DeliveryConfig struct {
	Mode     string `mapstructure:"mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// FetchConfig holds per-fetch defaults.
type FetchConfig struct {
	// Timeout cancels a fetch that has not delivered in time; 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`
}

var defaults = map[string]any{
	"database":           "coldfetch.db",
	"log.level":          "info",
	"log.format":         "console",
	"delivery.mode":      DeliveryInline,
	"delivery.pool_size": 4,
	"fetch.timeout":      "0s",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not load: %v", err))
	}
	return cfg
}

// Load reads path (YAML, TOML or JSON by extension) when non-empty, then
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Every key has a default, so AutomaticEnv sees them during Unmarshal.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database path is required")
	}
	if !slices.Contains(DeliveryModes, c.Delivery.Mode) {
		return fmt.Errorf("config: invalid delivery mode %q: must be one of %v", c.Delivery.Mode, DeliveryModes)
	}
	if c.Delivery.PoolSize <= 0 {
		return fmt.Errorf("config: delivery pool size must be positive, got %d", c.Delivery.PoolSize)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("config: invalid log format %q: must be console or json", c.Log.Format)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("config: negative fetch timeout %s", c.Fetch.Timeout)
	}
	return nil
}
