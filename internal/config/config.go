// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Manifest   ManifestConfig   `mapstructure:"manifest"`
	Validation ValidationConfig `mapstructure:"validation"`
	Warm       WarmConfig       `mapstructure:"warm"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ProvidersConfig holds the provider set and per-provider settings.
type ProvidersConfig struct {
	Enabled []string      `mapstructure:"enabled"` // declaration order is output order
	Timeout time.Duration `mapstructure:"timeout"` // whole-provider budget
	Vidsrc  VidsrcConfig  `mapstructure:"vidsrc"`
	HDHub   HDHubConfig   `mapstructure:"hdhub"`
}

// VidsrcConfig holds the embed provider settings.
type VidsrcConfig struct {
	Endpoint `mapstructure:",squash"`

	DefaultHopBase string        `mapstructure:"default_hop_base"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Stagger        time.Duration `mapstructure:"stagger"`
}

// HDHubConfig holds the search provider settings.
type HDHubConfig struct {
	Endpoint `mapstructure:",squash"`

	DisplayName    string `mapstructure:"display_name"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// Endpoint holds a single upstream's HTTP client configuration.
type Endpoint struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Retry     RetryConfig   `mapstructure:"retry"`
	CB        CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// MetadataConfig holds the TMDB lookup settings.
type MetadataConfig struct {
	Endpoint `mapstructure:",squash"`

	APIKey    string        `mapstructure:"api_key"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

// ManifestConfig holds the HLS manifest analyzer settings.
type ManifestConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ValidationConfig holds the link validator settings.
type ValidationConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	TrustedHosts []string      `mapstructure:"trusted_hosts"`
}

// WarmConfig holds background cache warming settings.
type WarmConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	OnStartup bool          `mapstructure:"on_startup"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Items     []string      `mapstructure:"items"` // "<kind>:<contentId>"
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RedisConfig holds Redis connection settings for the cache and distributed locking.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds stream cache settings.
//
// The memory backend is a freecache ring: a single entry larger than
// memory_size/1024 bytes (32 KiB at the 32 MiB default) is rejected and
// the result is served uncached. Raise memory_size for long stream lists.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Backend    string        `mapstructure:"backend"` // memory, redis, postgres
	TTL        time.Duration `mapstructure:"ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	MemorySize int           `mapstructure:"memory_size"` // bytes, memory backend only
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found, continue with defaults + env vars
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no safe default.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("cache.backend must be memory, redis or postgres, got %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	for _, name := range c.Providers.Enabled {
		switch name {
		case "vidsrc", "4khdhub":
		default:
			return fmt.Errorf("providers.enabled: unknown provider %q", name)
		}
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "stream-resolver")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "stream_resolver")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	// Provider set
	v.SetDefault("providers.enabled", []string{"vidsrc", "4khdhub"})
	v.SetDefault("providers.timeout", "45s")

	// Embed provider defaults
	setEndpointDefaults(v, "providers.vidsrc", "https://vidsrc.xyz", "12s")
	v.SetDefault("providers.vidsrc.default_hop_base", "https://cloudnestra.com")
	v.SetDefault("providers.vidsrc.max_concurrency", 4)
	v.SetDefault("providers.vidsrc.stagger", "250ms")

	// Search provider defaults
	setEndpointDefaults(v, "providers.hdhub", "https://4khdhub.fans", "15s")
	v.SetDefault("providers.hdhub.display_name", "4KHDHub")
	v.SetDefault("providers.hdhub.max_concurrency", 4)

	// Metadata defaults
	setEndpointDefaults(v, "metadata", "https://api.themoviedb.org/3", "8s")
	v.SetDefault("metadata.api_key", "")
	v.SetDefault("metadata.cache_ttl", "24h")
	v.SetDefault("metadata.cache_size", 8*1024*1024)

	// Manifest analyzer defaults
	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.timeout", "8s")

	// Validation defaults
	v.SetDefault("validation.timeout", "8s")
	v.SetDefault("validation.trusted_hosts", []string{"pixeldrain", "r2.dev", "workers.dev"})

	// Warm defaults
	v.SetDefault("warm.enabled", false)
	v.SetDefault("warm.interval", "30m")
	v.SetDefault("warm.on_startup", false)
	v.SetDefault("warm.timeout", "5m")
	v.SetDefault("warm.items", []string{})

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")

	// Sentry defaults
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "4h")
	v.SetDefault("cache.key_prefix", "stream-resolver")
	v.SetDefault("cache.memory_size", 32*1024*1024)
}

func setEndpointDefaults(v *viper.Viper, prefix, baseURL, timeout string) {
	v.SetDefault(prefix+".base_url", baseURL)
	v.SetDefault(prefix+".timeout", timeout)
	v.SetDefault(prefix+".user_agent", "")
	v.SetDefault(prefix+".retry.max_attempts", 1)
	v.SetDefault(prefix+".retry.wait_time", "500ms")
	v.SetDefault(prefix+".retry.max_wait_time", "2s")
	v.SetDefault(prefix+".circuit_breaker.max_requests", 3)
	v.SetDefault(prefix+".circuit_breaker.interval", "60s")
	v.SetDefault(prefix+".circuit_breaker.timeout", "30s")
	v.SetDefault(prefix+".circuit_breaker.failure_ratio", 0.6)
}
