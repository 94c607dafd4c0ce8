package config

import "time"

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the config file, then
// ONECLOUD_* environment variables, then command-line flags.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Pacing  PacingConfig  `mapstructure:"pacing"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig describes how to reach the provider API.
type APIConfig struct {
	Token     string        `mapstructure:"token"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Validate  bool          `mapstructure:"validate"`
	UserAgent string        `mapstructure:"user_agent"`
}

// PacingConfig controls the per-verb request gate.
type PacingConfig struct {
	// Store selects where markers persist between runs: none, libsql, redis.
	Store string `mapstructure:"store"`

	// Intervals overrides the minimum spacing per HTTP verb.
	Intervals map[string]time.Duration `mapstructure:"intervals"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig contains connection settings for the redis marker store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig contains sandbox HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Token           string        `mapstructure:"token"`
	AdminToken      string        `mapstructure:"admin_token"`
	Balance         float64       `mapstructure:"balance"`
	ThrottleRPS     float64       `mapstructure:"throttle_rps"`
	ThrottleBurst   int           `mapstructure:"throttle_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Pacing store backends.
const (
	PacingStoreNone   = "none"
	PacingStoreLibsql = "libsql"
	PacingStoreRedis  = "redis"
)
