package novels

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/apiclient"
	"github.com/zxckotee/novels-sub001/guard"
	"github.com/zxckotee/novels-sub001/hydrate"
	"github.com/zxckotee/novels-sub001/internal/audit"
	"github.com/zxckotee/novels-sub001/persist"
	"github.com/zxckotee/novels-sub001/session"
)

// Client is one process's view of the platform: a single session, its
// durable persistence, its hydration lifecycle and an API client bound to it.
// All methods are safe for concurrent use.
type Client struct {
	id     string
	cfg    Config
	logger *zap.Logger

	store     *session.Store
	persister *persist.Persister
	hydration *hydrate.Controller
	api       *apiclient.Client

	metrics *Metrics
	audit   *audit.Dispatcher

	closers []io.Closer
	closed  atomic.Bool
}

// ID returns the instance id attached to logs and audit events.
func (c *Client) ID() string { return c.id }

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Store returns the session store.
func (c *Client) Store() *session.Store { return c.store }

// API returns the REST client bound to the session.
func (c *Client) API() *apiclient.Client { return c.api }

// Snapshot returns the current session.
func (c *Client) Snapshot() session.Snapshot { return c.store.Snapshot() }

// Subscribe registers fn for session changes.
func (c *Client) Subscribe(fn session.Listener) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// Mount starts hydration. Only the first call has any effect; it returns
// false afterwards.
func (c *Client) Mount(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}
	started := c.hydration.Start(ctx)
	if started {
		c.logger.Debug("hydration started", zap.String("storage_key", c.persister.Key()))
	}
	return started
}

// HydrationState returns the hydration lifecycle state.
func (c *Client) HydrationState() hydrate.State { return c.hydration.State() }

// Hydrated reports whether the loading window has ended.
func (c *Client) Hydrated() bool { return c.hydration.State() == hydrate.StateHydrated }

// Done is closed once hydration has completed.
func (c *Client) Done() <-chan struct{} { return c.hydration.Done() }

// WaitHydrated mounts the client if needed and waits for hydration.
func (c *Client) WaitHydrated(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.Mount(ctx)
	return c.hydration.Wait(ctx)
}

// Guard returns a guard over this client's session.
func (c *Client) Guard(req guard.Requirement) *guard.Guard {
	return guard.New(c.store, req)
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	u, err := c.api.Login(ctx, email, password)
	c.recordSignIn(ctx, EventLogin, u, err)
	return u, err
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, req apiclient.RegisterRequest) (*session.User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	u, err := c.api.Register(ctx, req)
	c.recordSignIn(ctx, EventRegister, u, err)
	return u, err
}

// Logout signs out. The local session is cleared even when the API call
// fails; that failure is still returned.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	userID := ""
	if u := c.store.Snapshot().User; u != nil {
		userID = u.ID
	}

	err := c.api.Logout(ctx)
	c.metrics.Inc(MetricLogout)
	c.emit(ctx, EventLogout, userID, err, nil)
	return err
}

// RefreshToken renews the access token.
func (c *Client) RefreshToken(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	_, err := c.api.Refresh(ctx)
	return err
}

// CurrentUser fetches the signed-in user from the API and updates the
// session with it, so role changes made server-side take effect.
func (c *Client) CurrentUser(ctx context.Context) (*session.User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	snap := c.store.Snapshot()
	if snap.User == nil {
		return nil, ErrNotSignedIn
	}

	u, err := c.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	// A concurrent logout or account switch wins over this fetch.
	if cur := c.store.Snapshot().User; cur != nil && cur.ID == u.ID {
		c.store.SetUser(u)
	}
	return u, nil
}

// ClearStorage removes the persisted record without touching the in-memory
// session.
func (c *Client) ClearStorage(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.persister.Clear(ctx)
}

// Metrics returns the client's counters.
func (c *Client) Metrics() *Metrics { return c.metrics }

// MetricsSnapshot returns a copy of all counters and histograms.
func (c *Client) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// AuditDropped returns the number of audit events dropped under pressure.
func (c *Client) AuditDropped() uint64 { return c.audit.Dropped() }

// Close flushes audit events and releases storage connections. The session
// is left as it is. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.closeResources()
}

func (c *Client) closeResources() error {
	c.audit.Close()
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) recordSignIn(ctx context.Context, event string, u *session.User, err error) {
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, event, "", err, nil)
		return
	}
	c.metrics.Inc(MetricLogin)
	c.emit(ctx, event, u.ID, nil, nil)
}

func (c *Client) onPersisted(elapsed time.Duration) {
	c.metrics.Inc(MetricPersistWrite)
	c.metrics.Observe(MetricPersistLatency, elapsed)
}

func (c *Client) onPersistError(err error) {
	c.metrics.Inc(MetricPersistFailure)
	c.emit(context.Background(), EventPersistFailed, "", err, nil)
}

func (c *Client) onHydrated(outcome persist.Outcome, elapsed time.Duration, err error) {
	c.metrics.recordHydration(outcome, elapsed)

	userID := ""
	if u := c.store.Snapshot().User; u != nil {
		userID = u.ID
	}
	c.emit(context.Background(), EventHydrated, userID, err, map[string]string{
		"outcome": outcome.String(),
		"elapsed": elapsed.String(),
	})
}

func (c *Client) onRefresh(ok bool) {
	if ok {
		c.metrics.Inc(MetricRefreshSuccess)
		c.emit(context.Background(), EventRefresh, "", nil, nil)
		return
	}
	c.metrics.Inc(MetricRefreshFailure)
	c.emit(context.Background(), EventRefresh, "", errRefreshRejected, nil)
}

func (c *Client) onUnauthorizedLogout() {
	c.metrics.Inc(MetricUnauthorizedLogout)
	c.emit(context.Background(), EventUnauthorizedLogout, "", apiclient.ErrSessionExpired, nil)
}

var errRefreshRejected = errors.New("refresh rejected")

func (c *Client) emit(ctx context.Context, eventType, userID string, err error, meta map[string]string) {
	if c.audit == nil {
		return
	}
	ev := audit.Event{
		Timestamp:  time.Now().UTC(),
		Type:       eventType,
		InstanceID: c.id,
		UserID:     userID,
		Success:    err == nil,
		Metadata:   meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.audit.Emit(ctx, ev)
}
