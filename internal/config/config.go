// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration. One Config is loaded at
// startup and handed to each session; sessions never share mutable state
// through it.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Driver   DriverConfig   `mapstructure:"driver" yaml:"driver"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Recovery RecoveryConfig `mapstructure:"recovery" yaml:"recovery"`
	Healing  HealingConfig  `mapstructure:"healing" yaml:"healing"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
}

// LoggerConfig configures the zap logger and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DriverConfig configures the connection to the device-automation backend.
type DriverConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ConnectRetries uint          `mapstructure:"connect_retries" yaml:"connect_retries"`
	Capabilities   string        `mapstructure:"capabilities" yaml:"capabilities"` // capability profile path
}

// PipelineConfig configures the action execution pipeline.
type PipelineConfig struct {
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ActionsPerSecond throttles actions through the pacing middleware.
	// Zero disables pacing.
	ActionsPerSecond float64 `mapstructure:"actions_per_second" yaml:"actions_per_second"`
}

// CacheConfig configures the element cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Capacity int           `mapstructure:"capacity" yaml:"capacity"`
}

// RecoveryConfig configures the recovery manager. MaxPasses counts full
// scan passes over the strategy catalogue, not individual strategy
// attempts.
type RecoveryConfig struct {
	MaxPasses   int           `mapstructure:"max_passes" yaml:"max_passes"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// HealingConfig configures the self-healing locator resolver.
type HealingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MonitorConfig configures the background performance monitor.
type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SetDefaults registers every configuration default on the given viper
// instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "halcyon")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Driver --
	v.SetDefault("driver.base_url", "http://127.0.0.1:6790")
	v.SetDefault("driver.request_timeout", "30s")
	v.SetDefault("driver.connect_retries", 3)
	v.SetDefault("driver.capabilities", "")

	// -- Pipeline --
	v.SetDefault("pipeline.action_timeout", "10s")
	v.SetDefault("pipeline.actions_per_second", 0.0)

	// -- Cache --
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.capacity", 100)

	// -- Recovery --
	v.SetDefault("recovery.max_passes", 3)
	v.SetDefault("recovery.settle_delay", "1s")

	// -- Healing --
	v.SetDefault("healing.enabled", true)

	// -- Monitor --
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval", "5s")
}

// Default returns a Config populated purely from defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		// Defaults must always validate.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// NewFromViper unmarshals and validates a Config from a prepared viper
// instance.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and sane values.
func (c *Config) Validate() error {
	if c.Driver.BaseURL == "" {
		return fmt.Errorf("driver.base_url is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Recovery.MaxPasses <= 0 {
		return fmt.Errorf("recovery.max_passes must be positive, got %d", c.Recovery.MaxPasses)
	}
	if c.Recovery.SettleDelay < 0 {
		return fmt.Errorf("recovery.settle_delay cannot be negative")
	}
	if c.Pipeline.ActionTimeout <= 0 {
		return fmt.Errorf("pipeline.action_timeout must be positive, got %s", c.Pipeline.ActionTimeout)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive when the monitor is enabled")
	}
	return nil
}
