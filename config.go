package novels

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// StorageBackend names a durable storage implementation.
type StorageBackend string

const (
	BackendFile   StorageBackend = "file"
	BackendMemory StorageBackend = "memory"
	BackendRedis  StorageBackend = "redis"
	BackendSQLite StorageBackend = "sqlite"
)

// Config is the complete client configuration. Build one with
// [DefaultConfig] or [ConfigFromEnv] and adjust fields before passing it to
// [Builder.WithConfig].
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Metrics MetricsConfig
	Audit   AuditConfig
}

// APIConfig locates the platform REST API.
type APIConfig struct {
	BaseURL string        `env:"NOVELS_API_URL,default=http://localhost:8080/api/v1"`
	Timeout time.Duration `env:"NOVELS_API_TIMEOUT,default=30s"`
	// RefreshLeeway is how close to expiry an access token is refreshed
	// before use. Negative disables proactive refresh.
	RefreshLeeway time.Duration `env:"NOVELS_REFRESH_LEEWAY,default=30s"`
}

// StorageConfig selects where the session is persisted.
type StorageConfig struct {
	// Key is the single namespaced key holding the session record.
	Key     string         `env:"NOVELS_STORAGE_KEY,default=auth-storage"`
	Backend StorageBackend `env:"NOVELS_STORAGE_BACKEND,default=file"`
	// Dir holds one file per key for the file backend. Empty resolves to
	// the user config directory.
	Dir string `env:"NOVELS_STORAGE_DIR"`
	// SQLitePath is the database file for the sqlite backend. Empty
	// resolves to storage.db under Dir.
	SQLitePath  string `env:"NOVELS_SQLITE_PATH"`
	RedisAddr   string `env:"NOVELS_REDIS_ADDR,default=localhost:6379"`
	RedisPrefix string `env:"NOVELS_REDIS_PREFIX,default=novels"`
	// AgeIdentity, when set, encrypts records at rest. It is either an
	// AGE-SECRET-KEY string or a path to an identity file.
	AgeIdentity  string        `env:"NOVELS_STORAGE_AGE_IDENTITY"`
	WriteTimeout time.Duration `env:"NOVELS_PERSIST_TIMEOUT,default=2s"`
	// ReadTimeout bounds the hydration read, independent of any caller.
	ReadTimeout time.Duration `env:"NOVELS_HYDRATE_TIMEOUT,default=10s"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"NOVELS_METRICS_ENABLED,default=true"`
	EnableLatencyHistograms bool `env:"NOVELS_METRICS_LATENCY,default=true"`
}

// AuditConfig controls session event dispatch.
type AuditConfig struct {
	Enabled    bool `env:"NOVELS_AUDIT_ENABLED,default=false"`
	BufferSize int  `env:"NOVELS_AUDIT_BUFFER,default=256"`
	DropIfFull bool `env:"NOVELS_AUDIT_DROP_IF_FULL,default=true"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "http://localhost:8080/api/v1",
			Timeout:       30 * time.Second,
			RefreshLeeway: 30 * time.Second,
		},
		Storage: StorageConfig{
			Key:          "auth-storage",
			Backend:      BackendFile,
			RedisAddr:    "localhost:6379",
			RedisPrefix:  "novels",
			WriteTimeout: 2 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// ConfigFromEnv reads the configuration from NOVELS_* environment variables.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	return configFromLookuper(ctx, envconfig.OsLookuper())
}

func configFromLookuper(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: API base url %q", ErrInvalidConfig, c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: API base url scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: API timeout must be > 0", ErrInvalidConfig)
	}

	if c.Storage.Key == "" {
		return fmt.Errorf("%w: storage key is empty", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend requires an address", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.WriteTimeout <= 0 {
		return fmt.Errorf("%w: persist timeout must be > 0", ErrInvalidConfig)
	}
	if c.Storage.ReadTimeout <= 0 {
		return fmt.Errorf("%w: hydrate timeout must be > 0", ErrInvalidConfig)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: audit buffer size must be > 0", ErrInvalidConfig)
	}
	return nil
}

// StorageDir returns the resolved directory of the file backend.
func (c StorageConfig) StorageDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve config dir: %v", ErrInvalidConfig, err)
	}
	return filepath.Join(base, "novels"), nil
}

// DatabasePath returns the resolved sqlite database path.
func (c StorageConfig) DatabasePath() (string, error) {
	if c.SQLitePath != "" {
		return c.SQLitePath, nil
	}
	dir, err := c.StorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "storage.db"), nil
}
