package hydrate

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the controller's position in the hydration lifecycle.
type State uint32

const (
	// StateNotStarted is the state before Start.
	StateNotStarted State = iota
	// StateRehydrating means the persisted read is in flight.
	StateRehydrating
	// StateHydrated is terminal.
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRehydrating:
		return "REHYDRATING"
	case StateHydrated:
		return "HYDRATED"
	default:
		return "UNKNOWN"
	}
}

// Source is the durable-storage side of hydration.
type Source interface {
	Rehydrate(ctx context.Context)
	OnFinishHydration(fn func()) (unsubscribe func())
	HasHydrated() bool
}

// LoadingSetter receives the end of the loading window.
type LoadingSetter interface {
	SetLoading(loading bool)
}

// Controller drives one hydration per process lifetime.
type Controller struct {
	source Source
	target LoadingSetter

	state    atomic.Uint32
	complete sync.Once
	done     chan struct{}

	mu          sync.Mutex
	unsubscribe func()
	onHydrated  []func()
}

// NewController returns a controller in StateNotStarted. A nil source is
// treated as unavailable storage: Start completes immediately.
func NewController(source Source, target LoadingSetter) *Controller {
	return &Controller{
		source: source,
		target: target,
		done:   make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// OnHydrated registers fn to run once after SetLoading(false). If the
// controller is already hydrated fn runs immediately.
func (c *Controller) OnHydrated(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if c.State() != StateHydrated {
		c.onHydrated = append(c.onHydrated, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Start begins hydration. It returns false, doing nothing, if hydration was
// already started by an earlier call.
func (c *Controller) Start(ctx context.Context) bool {
	if !c.state.CompareAndSwap(uint32(StateNotStarted), uint32(StateRehydrating)) {
		return false
	}
	if c.source == nil {
		c.finish()
		return true
	}

	unsubscribe := c.source.OnFinishHydration(c.finish)
	c.source.Rehydrate(ctx)
	if c.source.HasHydrated() {
		c.finish()
	}

	c.mu.Lock()
	hydrated := c.State() == StateHydrated
	if !hydrated {
		c.unsubscribe = unsubscribe
	}
	c.mu.Unlock()
	if hydrated && unsubscribe != nil {
		unsubscribe()
	}
	return true
}

// Done is closed once the controller reaches StateHydrated.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until hydration completes or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) finish() {
	c.complete.Do(func() {
		if c.target != nil {
			c.target.SetLoading(false)
		}

		c.mu.Lock()
		c.state.Store(uint32(StateHydrated))
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		callbacks := c.onHydrated
		c.onHydrated = nil
		c.mu.Unlock()

		close(c.done)
		if unsubscribe != nil {
			unsubscribe()
		}
		for _, fn := range callbacks {
			fn()
		}
	})
}
