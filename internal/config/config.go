package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Environment selects between the permissive development behavior and the
// fail-closed production behavior of the request guards.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment maps a configured string to an Environment. Anything that
// is not recognisably development is treated as production.
func ParseEnvironment(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev", "local":
		return Development
	default:
		return Production
	}
}

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// RateClassConfig is the fixed-window budget of one limit class.
type RateClassConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig holds the rate limiter configuration.
type RateLimitConfig struct {
	// Backend is "memory" (per-replica) or "redis" (shared across replicas).
	Backend       string                     `yaml:"backend"`
	SweepInterval time.Duration              `yaml:"sweep_interval"`
	Classes       map[string]RateClassConfig `yaml:"classes"`
}

// RedisConfig holds the connection settings for the shared rate-limit counter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds configuration for uploaded logo assets.
type StorageConfig struct {
	Root           string `yaml:"root"`
	MaxUploadBytes int    `yaml:"max_upload_bytes"`
}

// CacheConfig holds configuration for the key list cache.
type CacheConfig struct {
	KeyListTTL time.Duration `yaml:"key_list_ttl"`
}

// Config holds the configuration for the dashboard back end.
type Config struct {
	Environment string          `yaml:"environment"`
	Database    DatabaseConfig  `yaml:"database"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Redis       RedisConfig     `yaml:"redis"`
	Storage     StorageConfig   `yaml:"storage"`
	Cache       CacheConfig     `yaml:"cache"`
	Port        int             `yaml:"port"`
	Debug       bool            `yaml:"debug"`
	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For header is believed. Empty means the socket address
	// is the client address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Env returns the parsed environment mode.
func (c *Config) Env() Environment {
	return ParseEnvironment(c.Environment)
}

// DefaultRateClasses is the static class table used when the config file
// does not override a class.
func DefaultRateClasses() map[string]RateClassConfig {
	return map[string]RateClassConfig{
		"default": {MaxRequests: 30, Window: time.Minute},
		"strict":  {MaxRequests: 5, Window: time.Minute},
		"lenient": {MaxRequests: 100, Window: time.Minute},
		"upload":  {MaxRequests: 5, Window: time.Minute},
	}
}

const envPrefix = "SPORTSDASH_"

// LoadConfig reads and parses the configuration file. It returns the config and a potential warning message.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config
	var warnings []string

	data, err := os.ReadFile(path)
	if err == nil {
		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}
	// A missing file is fine, everything can come from the environment.

	applyEnvOverrides(&config)

	if config.Environment == "" {
		config.Environment = string(Production)
		warnings = append(warnings, "environment not set, defaulting to production")
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.RateLimit.Backend == "" {
		config.RateLimit.Backend = "memory"
	}
	if config.RateLimit.SweepInterval <= 0 {
		config.RateLimit.SweepInterval = 5 * time.Minute
	}
	classes := DefaultRateClasses()
	for name, class := range config.RateLimit.Classes {
		name = strings.ToLower(name)
		if _, known := classes[name]; !known {
			warnings = append(warnings, fmt.Sprintf("unknown rate limit class %q ignored", name))
			continue
		}
		if class.MaxRequests <= 0 || class.Window <= 0 {
			return nil, "", fmt.Errorf("rate limit class %q needs positive max_requests and window", name)
		}
		classes[name] = class
	}
	config.RateLimit.Classes = classes
	if config.Storage.Root == "" {
		config.Storage.Root = "./uploads"
	}
	if config.Storage.MaxUploadBytes <= 0 {
		config.Storage.MaxUploadBytes = 5 << 20
	}
	if config.Cache.KeyListTTL <= 0 {
		config.Cache.KeyListTTL = 30 * time.Second
	}

	if config.Database.Type == "" || config.Database.DSN == "" {
		return nil, "", fmt.Errorf("database type and dsn must be configured in config.yaml or via environment variables")
	}
	if config.RateLimit.Backend != "memory" && config.RateLimit.Backend != "redis" {
		return nil, "", fmt.Errorf("unsupported rate limit backend: %s", config.RateLimit.Backend)
	}
	if config.RateLimit.Backend == "redis" && config.Redis.Addr == "" {
		return nil, "", fmt.Errorf("redis.addr is required when the rate limit backend is redis")
	}

	return &config, strings.Join(warnings, "; "), nil
}

func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv(envPrefix + "DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv(envPrefix + "DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if port := os.Getenv(envPrefix + "PORT"); port != "" {
		var p int
		if n, err := fmt.Sscanf(port, "%d", &p); err == nil && n == 1 {
			config.Port = p
		}
	}
	if debug := os.Getenv(envPrefix + "DEBUG"); debug != "" {
		config.Debug = debug == "true"
	}
	if env := os.Getenv(envPrefix + "ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if addr := os.Getenv(envPrefix + "REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if backend := os.Getenv(envPrefix + "RATELIMIT_BACKEND"); backend != "" {
		config.RateLimit.Backend = backend
	}
	if root := os.Getenv(envPrefix + "STORAGE_ROOT"); root != "" {
		config.Storage.Root = root
	}
	if proxies := os.Getenv(envPrefix + "TRUSTED_PROXIES"); proxies != "" {
		config.TrustedProxies = nil
		for _, p := range strings.Split(proxies, ",") {
			if p = strings.TrimSpace(p); p != "" {
				config.TrustedProxies = append(config.TrustedProxies, p)
			}
		}
	}
}
