// Package config provides centralized configuration management for onecloud.
// Defaults are registered on a viper instance, the file and environment
// layers are resolved by viper, and the merged tree is decoded with
// mapstructure into Config.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName is used for XDG paths, the env prefix and the binary name.
const AppName = "onecloud"

// EnvPrefix is the environment variable prefix (ONECLOUD_API_TOKEN, ...).
const EnvPrefix = "ONECLOUD"

// DefaultBaseURL is the provider API origin.
const DefaultBaseURL = "https://api.1cloud.ru"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key so that environment variables are
// visible to AllSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.token", "")
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("api.validate", false)
	v.SetDefault("api.user_agent", "")

	v.SetDefault("pacing.store", PacingStoreLibsql)
	v.SetDefault("pacing.intervals", map[string]string{})

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", AppName)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.token", "sandbox-token")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.balance", 1000.0)
	v.SetDefault("server.throttle_rps", 0.0)
	v.SetDefault("server.throttle_burst", 1)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// BindEnv wires ONECLOUD_* environment variables onto nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the merged viper settings into a Config and stores it as the
// current configuration.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := normalize(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func normalize(cfg *Config) error {
	cfg.API.Token = strings.TrimSpace(cfg.API.Token)
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("invalid api timeout: %s", cfg.API.Timeout)
	}

	cfg.Pacing.Store = strings.ToLower(strings.TrimSpace(cfg.Pacing.Store))
	switch cfg.Pacing.Store {
	case "":
		cfg.Pacing.Store = PacingStoreNone
	case PacingStoreNone, PacingStoreLibsql, PacingStoreRedis:
	default:
		return fmt.Errorf("unsupported pacing store: %s", cfg.Pacing.Store)
	}

	if len(cfg.Pacing.Intervals) > 0 {
		intervals := make(map[string]time.Duration, len(cfg.Pacing.Intervals))
		for verb, interval := range cfg.Pacing.Intervals {
			intervals[strings.ToUpper(strings.TrimSpace(verb))] = interval
		}
		cfg.Pacing.Intervals = intervals
	}

	if cfg.Server.ThrottleRPS < 0 {
		return fmt.Errorf("invalid server throttle_rps: %v", cfg.Server.ThrottleRPS)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	return nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
