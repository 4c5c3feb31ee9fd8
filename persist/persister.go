package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/session"
	"github.com/zxckotee/novels-sub001/storage"
)

const (
	// DefaultKey is the storage key used when Options.Key is empty.
	DefaultKey = "auth-storage"
	// DefaultWriteTimeout bounds each persisted write.
	DefaultWriteTimeout = 2 * time.Second
	// DefaultReadTimeout bounds the hydration read.
	DefaultReadTimeout = 10 * time.Second
)

// Outcome classifies how hydration ended.
type Outcome int

const (
	// OutcomeRestored means a valid record was applied to the store.
	OutcomeRestored Outcome = iota
	// OutcomeEmpty means no record was stored.
	OutcomeEmpty
	// OutcomeCorrupt means a record existed but could not be decoded.
	OutcomeCorrupt
	// OutcomeFailed means the backend could not be read.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRestored:
		return "restored"
	case OutcomeEmpty:
		return "empty"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Hooks observe persistence activity. Any field may be nil.
type Hooks struct {
	OnPersisted    func(elapsed time.Duration)
	OnPersistError func(err error)
	OnHydrated     func(outcome Outcome, elapsed time.Duration, err error)
}

// Options configure a Persister.
type Options struct {
	Key          string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Logger       *zap.Logger
	Hooks        Hooks
}

// Persister is the store's durable write hook and its one-shot hydration
// source. It satisfies session.Persister.
type Persister struct {
	store        *session.Store
	backend      storage.Storage
	key          string
	writeTimeout time.Duration
	readTimeout  time.Duration
	logger       *zap.Logger
	hooks        Hooks

	started  atomic.Bool
	hydrated atomic.Bool

	mu        sync.Mutex
	listeners map[uint64]func()
	nextID    uint64
}

// Attach creates a Persister for store and installs it as the store's write
// hook. backend may be nil, in which case writes are dropped and hydration
// completes immediately with an empty session.
func Attach(store *session.Store, backend storage.Storage, opts Options) *Persister {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &Persister{
		store:        store,
		backend:      backend,
		key:          opts.Key,
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		logger:       opts.Logger.With(zap.String("storage_key", opts.Key)),
		hooks:        opts.Hooks,
		listeners:    make(map[uint64]func()),
	}
	store.SetPersister(p)
	return p
}

// Key returns the storage key.
func (p *Persister) Key() string { return p.key }

// Persist writes state under the storage key. Failures are logged and
// reported through Hooks; they never fail the store action.
func (p *Persister) Persist(state session.PersistedState) {
	if p.backend == nil {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	data, err := session.Encode(state)
	if err != nil {
		// A stale record must not outlive the state that replaced it.
		if rmErr := p.backend.Remove(ctx, p.key); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		p.persistFailed(fmt.Errorf("encode session: %w", err))
		return
	}
	if err := p.backend.Set(ctx, p.key, data); err != nil {
		p.persistFailed(err)
		return
	}

	elapsed := time.Since(start)
	p.logger.Debug("session persisted",
		zap.Bool("authenticated", state.User != nil),
		zap.Duration("elapsed", elapsed),
	)
	if p.hooks.OnPersisted != nil {
		p.hooks.OnPersisted(elapsed)
	}
}

func (p *Persister) persistFailed(err error) {
	p.logger.Warn("session persist failed", zap.Error(err))
	if p.hooks.OnPersistError != nil {
		p.hooks.OnPersistError(err)
	}
}

// Clear removes the persisted record without touching the store.
func (p *Persister) Clear(ctx context.Context) error {
	if p.backend == nil {
		return nil
	}
	return p.backend.Remove(ctx, p.key)
}

// Rehydrate reads the persisted record once and restores it into the store.
// Synchronous backends complete before Rehydrate returns; others complete on
// a goroutine. Calls after the first are no-ops.
//
// The read keeps ctx's values but not its cancellation: a caller that stops
// waiting does not turn a stored session into an empty one. The read is
// bounded by Options.ReadTimeout instead.
func (p *Persister) Rehydrate(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	if p.backend == nil || storage.IsSynchronous(p.backend) {
		p.load(ctx)
		return
	}
	go p.load(ctx)
}

// HasHydrated reports whether Rehydrate has completed.
func (p *Persister) HasHydrated() bool {
	return p.hydrated.Load()
}

// OnFinishHydration registers fn to run when hydration completes and returns
// a function that removes it. fn is not called if hydration already finished;
// callers check HasHydrated after registering.
func (p *Persister) OnFinishHydration(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Persister) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()

	start := time.Now()
	outcome := OutcomeFailed
	var loadErr error

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			loadErr = fmt.Errorf("%w: storage panic: %v", storage.ErrUnavailable, r)
		}
		p.finish(outcome, time.Since(start), loadErr)
	}()

	outcome, loadErr = p.read(ctx)
}

func (p *Persister) read(ctx context.Context) (Outcome, error) {
	if p.backend == nil {
		return OutcomeEmpty, nil
	}

	data, err := p.backend.Get(ctx, p.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeEmpty, nil
		}
		if errors.Is(err, storage.ErrCorrupt) {
			return OutcomeCorrupt, err
		}
		return OutcomeFailed, err
	}

	state, err := session.Decode(data)
	if err != nil {
		return OutcomeCorrupt, err
	}
	p.store.Restore(state)
	if state.User == nil {
		return OutcomeEmpty, nil
	}
	return OutcomeRestored, nil
}

func (p *Persister) finish(outcome Outcome, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.Stringer("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		p.logger.Warn("session hydration fell back to empty session", append(fields, zap.Error(err))...)
	} else {
		p.logger.Debug("session hydrated", fields...)
	}

	if p.hooks.OnHydrated != nil {
		p.hooks.OnHydrated(outcome, elapsed, err)
	}

	p.mu.Lock()
	p.hydrated.Store(true)
	listeners := make([]func(), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
