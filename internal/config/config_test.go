package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHOPIFY_API_KEY", "key")
	t.Setenv("SHOPIFY_API_SECRET", "secret")
	t.Setenv("DEPLOYED_URI", "https://install.example.com/")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.StateStore != StateStoreDatabase {
		t.Errorf("StateStore = %q, want %q", cfg.StateStore, StateStoreDatabase)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q, want sqlite", cfg.DatabaseDriver)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 10s", cfg.UpstreamTimeout)
	}
	if !cfg.SanityCheck {
		t.Error("SanityCheck = false, want true")
	}
	if got := cfg.CallbackURL(); got != "https://install.example.com/auth/callback" {
		t.Errorf("CallbackURL() = %q", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SHOPIFY_OAUTH_SCOPES", "read_products, write_orders")
	t.Setenv("STATE_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STATE_TTL", "2m")
	t.Setenv("SANITY_CHECK", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Scopes) != 2 || cfg.Scopes[0] != "read_products" || cfg.Scopes[1] != "write_orders" {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.StateStore != StateStoreRedis {
		t.Errorf("StateStore = %q", cfg.StateStore)
	}
	if cfg.StateTTL != 2*time.Minute {
		t.Errorf("StateTTL = %v", cfg.StateTTL)
	}
	if cfg.SanityCheck {
		t.Error("SanityCheck = true, want false")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api_key: file-key
api_secret: file-secret
deployed_uri: https://file.example.com
scopes: [read_orders]
state_store: memory
state_ttl: 5m
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SHOPIFY_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env override", cfg.APIKey)
	}
	if cfg.APISecret != "file-secret" {
		t.Errorf("APISecret = %q", cfg.APISecret)
	}
	if cfg.StateStore != StateStoreMemory {
		t.Errorf("StateStore = %q", cfg.StateStore)
	}
	if cfg.StateTTL != 5*time.Minute {
		t.Errorf("StateTTL = %v", cfg.StateTTL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.APIKey = "key"
		cfg.APISecret = "secret"
		cfg.DeployedURI = "https://install.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing api key", modify: func(c *Config) { c.APIKey = "" }, wantErr: true},
		{name: "missing api secret", modify: func(c *Config) { c.APISecret = "" }, wantErr: true},
		{name: "relative deployed uri", modify: func(c *Config) { c.DeployedURI = "/install" }, wantErr: true},
		{name: "suffix without dot", modify: func(c *Config) { c.ShopSuffix = "myshopify.com" }, wantErr: true},
		{name: "unknown state store", modify: func(c *Config) { c.StateStore = "firestore" }, wantErr: true},
		{name: "redis without url", modify: func(c *Config) { c.StateStore = StateStoreRedis }, wantErr: true},
		{name: "cookie store", modify: func(c *Config) { c.StateStore = StateStoreCookie }},
		{name: "zero ttl", modify: func(c *Config) { c.StateTTL = 0 }, wantErr: true},
		{name: "bad log level", modify: func(c *Config) { c.Logging.Level = "trace" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCleanDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"sqlite3://./shopinstall.db", "./shopinstall.db"},
		{"postgres://user:pw@localhost/db", "postgres://user:pw@localhost/db"},
		{"postgresql://user:pw@localhost/db", "postgres://user:pw@localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			cfg := &Config{DatabaseDSN: tt.dsn, DatabaseDriver: detectDriver(tt.dsn)}
			if got := cfg.CleanDSN(); got != tt.want {
				t.Errorf("CleanDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
