// Package config loads the MinutoDash binary configuration from defaults, an
// optional config.yaml and MINUTODASH_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: server.addr is read from
// MINUTODASH_SERVER_ADDR.
const EnvPrefix = "MINUTODASH"

// Config is the whole binary configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig enables the health service when Addr is set.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// BackendConfig describes the proxy. URL is where dashboards reach it from a
// non-local Host.
type BackendConfig struct {
	URL  string `mapstructure:"url"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type RelayConfig struct {
	URL string `mapstructure:"url"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RelayTimeout time.Duration `mapstructure:"relay_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// CacheConfig sizes the caches. An empty RedisAddr keeps responses in
// process only.
type CacheConfig struct {
	MaxEntries    int           `mapstructure:"max_entries"`
	ResponseTTL   time.Duration `mapstructure:"response_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Pretty  bool `mapstructure:"pretty"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type FeedsConfig struct {
	AuthKey         string        `mapstructure:"auth_key"`
	NVDMinScore     float64       `mapstructure:"nvd_min_score"`
	NVDWindow       time.Duration `mapstructure:"nvd_window"`
	NVDViaRelay     bool          `mapstructure:"nvd_via_relay"`
	CountrySuffixes []string      `mapstructure:"country_suffixes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("grpc.addr", "")

	v.SetDefault("backend.url", "")
	v.SetDefault("backend.host", "")
	v.SetDefault("backend.mode", "simulate")

	v.SetDefault("relay.url", "https://api.allorigins.win/get?url=")

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.relay_timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "MinutoDash/1.0")

	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.response_ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.pretty", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("feeds.auth_key", "")
	v.SetDefault("feeds.nvd_min_score", 9.0)
	v.SetDefault("feeds.nvd_window", 720*time.Hour)
	v.SetDefault("feeds.nvd_via_relay", true)
	v.SetDefault("feeds.country_suffixes", []string{".br"})
}

// Load reads config.yaml from the given directories (. and ./config when none
// are given). A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the binary cannot run with.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case "simulate", "upstream":
	default:
		return fmt.Errorf("config: backend.mode %q is neither simulate nor upstream", c.Backend.Mode)
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is empty")
	}
	if c.Fetch.Timeout <= 0 || c.Fetch.RelayTimeout <= 0 {
		return errors.New("config: fetch timeouts must be positive")
	}
	if c.Cache.ResponseTTL <= 0 {
		return errors.New("config: cache.response_ttl must be positive")
	}
	return nil
}
