package novels

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.Key != "auth-storage" || cfg.Storage.Backend != BackendFile {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
}

func TestConfigFromEnvDefaultsMatchDefaultConfig(t *testing.T) {
	cfg, err := configFromLookuper(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if cfg != defaultConfig() {
		t.Fatalf("env defaults drifted from defaultConfig:\n%+v\n%+v", cfg, defaultConfig())
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	cfg, err := configFromLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"NOVELS_API_URL":         "https://novels.example/api/v1",
		"NOVELS_API_TIMEOUT":     "5s",
		"NOVELS_STORAGE_KEY":     "session",
		"NOVELS_STORAGE_BACKEND": "redis",
		"NOVELS_REDIS_ADDR":      "cache:6379",
		"NOVELS_PERSIST_TIMEOUT": "500ms",
		"NOVELS_METRICS_ENABLED": "false",
		"NOVELS_AUDIT_ENABLED":   "true",
	}))
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if cfg.API.BaseURL != "https://novels.example/api/v1" || cfg.API.Timeout != 5*time.Second {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
	if cfg.Storage.Key != "session" || cfg.Storage.Backend != BackendRedis || cfg.Storage.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Storage.WriteTimeout != 500*time.Millisecond || cfg.Metrics.Enabled || !cfg.Audit.Enabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigFromEnvRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"backend":  {"NOVELS_STORAGE_BACKEND": "floppy"},
		"url":      {"NOVELS_API_URL": "ftp://example"},
		"duration": {"NOVELS_API_TIMEOUT": "soon"},
	}
	for name, env := range cases {
		if _, err := configFromLookuper(context.Background(), envconfig.MapLookuper(env)); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"empty key":       func(c *Config) { c.Storage.Key = "" },
		"zero timeout":    func(c *Config) { c.API.Timeout = 0 },
		"redis no addr":   func(c *Config) { c.Storage.Backend = BackendRedis; c.Storage.RedisAddr = "" },
		"persist timeout": func(c *Config) { c.Storage.WriteTimeout = 0 },
		"audit buffer":    func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}
	for name, mutate := range mutations {
		cfg := defaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestStoragePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := StorageConfig{Dir: dir}

	got, err := cfg.StorageDir()
	if err != nil || got != dir {
		t.Fatalf("expected %q, got %q (%v)", dir, got, err)
	}
	db, err := cfg.DatabasePath()
	if err != nil || db != filepath.Join(dir, "storage.db") {
		t.Fatalf("unexpected db path %q (%v)", db, err)
	}

	cfg.SQLitePath = "/tmp/x.db"
	if db, _ := cfg.DatabasePath(); db != "/tmp/x.db" {
		t.Fatalf("explicit sqlite path ignored: %q", db)
	}
}
