// Package config provides the service configuration, loaded once at startup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// State store backends.
const (
	StateStoreDatabase = "database"
	StateStoreRedis    = "redis"
	StateStoreCookie   = "cookie"
	StateStoreMemory   = "memory"
)

// Config holds all configuration for the server. It is built by Load and
// treated as read-only afterwards.
type Config struct {
	// Server settings
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Shopify app credentials
	APIKey          string        `yaml:"api_key"`
	APISecret       string        `yaml:"api_secret"`
	Scopes          []string      `yaml:"scopes"`
	APIVersion      string        `yaml:"api_version"`
	ShopSuffix      string        `yaml:"shop_suffix"`
	DeployedURI     string        `yaml:"deployed_uri"`
	SanityCheck     bool          `yaml:"sanity_check"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// State store
	StateStore     string        `yaml:"state_store"`
	StateTTL       time.Duration `yaml:"state_ttl"`
	DatabaseDSN    string        `yaml:"database_dsn"`
	DatabaseDriver string        `yaml:"-"` // "postgres" or "sqlite", auto-detected from DSN
	RedisURL       string        `yaml:"redis_url"`
	RedisKeyPrefix string        `yaml:"redis_key_prefix"`
	CookieSecure   bool          `yaml:"cookie_secure"`

	// Observability
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	Logging        LoggingConfig `yaml:"logging"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Port:            8080,
		CORSOrigins:     []string{"*"},
		ShopSuffix:      ".myshopify.com",
		SanityCheck:     true,
		UpstreamTimeout: 10 * time.Second,
		StateStore:      StateStoreDatabase,
		StateTTL:        10 * time.Minute,
		DatabaseDSN:     "sqlite3://./shopinstall.db",
		RedisKeyPrefix:  "shopinstall:",
		MetricsEnabled:  true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Server
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)

	// Shopify app
	cfg.APIKey = getEnv("SHOPIFY_API_KEY", cfg.APIKey)
	cfg.APISecret = getEnv("SHOPIFY_API_SECRET", cfg.APISecret)
	cfg.Scopes = getEnvList("SHOPIFY_OAUTH_SCOPES", cfg.Scopes)
	cfg.APIVersion = getEnv("SHOPIFY_API_VERSION", cfg.APIVersion)
	cfg.ShopSuffix = getEnv("SHOP_DOMAIN_SUFFIX", cfg.ShopSuffix)
	cfg.DeployedURI = strings.TrimSuffix(getEnv("DEPLOYED_URI", cfg.DeployedURI), "/")
	cfg.SanityCheck = getEnvBool("SANITY_CHECK", cfg.SanityCheck)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)

	// State store
	cfg.StateStore = getEnv("STATE_STORE", cfg.StateStore)
	cfg.StateTTL = getEnvDuration("STATE_TTL", cfg.StateTTL)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.DatabaseDriver = detectDriver(cfg.DatabaseDSN)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)

	// Observability
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("invalid port")
	}
	if c.APIKey == "" {
		return errors.New("SHOPIFY_API_KEY is required")
	}
	if c.APISecret == "" {
		return errors.New("SHOPIFY_API_SECRET is required")
	}
	if c.DeployedURI == "" {
		return errors.New("DEPLOYED_URI is required")
	}
	u, err := url.Parse(c.DeployedURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DEPLOYED_URI must be an absolute URL: %q", c.DeployedURI)
	}
	if !strings.HasPrefix(c.ShopSuffix, ".") {
		return fmt.Errorf("SHOP_DOMAIN_SUFFIX must start with a dot: %q", c.ShopSuffix)
	}
	if c.StateTTL <= 0 {
		return errors.New("STATE_TTL must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be positive")
	}

	switch c.StateStore {
	case StateStoreDatabase:
		if c.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the database state store")
		}
	case StateStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis state store")
		}
	case StateStoreCookie, StateStoreMemory:
	default:
		return fmt.Errorf("unsupported state store: %s", c.StateStore)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// CallbackURL is the redirect_uri registered with Shopify.
func (c *Config) CallbackURL() string {
	return c.DeployedURI + "/auth/callback"
}

// detectDriver determines the database driver from DSN
func detectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.HasPrefix(dsn, "sqlite3://") || strings.HasPrefix(dsn, "sqlite://") {
		return "sqlite"
	}
	// Default to sqlite for file paths
	if strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") || dsn == ":memory:" {
		return "sqlite"
	}
	return "postgres"
}

// CleanDSN removes the driver prefix from DSN for database/sql
func (c *Config) CleanDSN() string {
	dsn := c.DatabaseDSN
	dsn = strings.TrimPrefix(dsn, "postgres://")
	dsn = strings.TrimPrefix(dsn, "postgresql://")
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	dsn = strings.TrimPrefix(dsn, "sqlite://")

	if c.DatabaseDriver == "postgres" {
		return "postgres://" + dsn
	}
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
