package novels

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/apiclient"
	"github.com/zxckotee/novels-sub001/hydrate"
	"github.com/zxckotee/novels-sub001/internal/audit"
	"github.com/zxckotee/novels-sub001/persist"
	"github.com/zxckotee/novels-sub001/session"
	"github.com/zxckotee/novels-sub001/storage"
)

// Builder assembles a Client. Configure it during initialization and call
// Build once.
type Builder struct {
	config Config

	storage    storage.Storage
	storageSet bool
	logger     *zap.Logger
	auditSink  AuditSink
	httpClient *http.Client
	instanceID string

	built bool
}

// New returns a Builder with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStorage overrides the configured storage backend. A nil storage
// means no durable storage: hydration completes empty and writes are
// dropped.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storage = s
	b.storageSet = true
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit consumer. Audit must also be enabled in the
// configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithInstanceID fixes the client instance id. By default a random UUID is
// used.
func (b *Builder) WithInstanceID(id string) *Builder {
	b.instanceID = id
	return b
}

// Build validates the configuration and wires the session, its persister,
// the hydration controller and the API client. The Client starts loading;
// call [Client.Mount] to hydrate it.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := b.instanceID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With(zap.String("instance_id", id))

	backend := b.storage
	var closers []io.Closer
	if !b.storageSet {
		opened, closer, err := OpenStorage(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		backend = opened
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	c := &Client{
		id:      id,
		cfg:     cfg,
		logger:  logger,
		store:   session.NewStore(),
		metrics: NewMetrics(cfg.Metrics),
		closers: closers,
	}
	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Keep:       []string{EventLogin, EventRegister, EventLogout, EventUnauthorizedLogout},
	}, b.auditSink)

	c.persister = persist.Attach(c.store, backend, persist.Options{
		Key:          cfg.Storage.Key,
		WriteTimeout: cfg.Storage.WriteTimeout,
		ReadTimeout:  cfg.Storage.ReadTimeout,
		Logger:       logger.Named("persist"),
		Hooks: persist.Hooks{
			OnPersisted:    c.onPersisted,
			OnPersistError: c.onPersistError,
			OnHydrated:     c.onHydrated,
		},
	})
	c.hydration = hydrate.NewController(c.persister, c.store)

	api, err := apiclient.New(c.store, apiclient.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		HTTPClient:    b.httpClient,
		Logger:        logger,
		RefreshLeeway: cfg.API.RefreshLeeway,
		Hooks: apiclient.Hooks{
			OnRefresh:            c.onRefresh,
			OnUnauthorizedLogout: c.onUnauthorizedLogout,
		},
	})
	if err != nil {
		c.closeResources()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.api = api

	b.built = true
	return c, nil
}
