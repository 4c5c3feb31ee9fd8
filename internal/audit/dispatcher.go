package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultKeepWait bounds how long a kept event waits for queue room.
const DefaultKeepWait = 250 * time.Millisecond

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the queue is full instead of waiting.
	DropIfFull bool
	// Keep lists event types that are not dropped on a full queue right
	// away: they wait up to KeepWait for room first.
	Keep     []string
	KeepWait time.Duration
}

// Dispatcher hands events to a sink on one background goroutine, in the
// order they were accepted. A nil Dispatcher accepts and discards events.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	keep       map[string]struct{}
	keepWait   time.Duration

	// sendMu is held shared by senders and exclusively by Shutdown, so the
	// queue is closed only when no send is in progress.
	sendMu  sync.RWMutex
	queue   chan Event
	closing chan struct{}
	drained chan struct{}
	once    sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.KeepWait <= 0 {
		cfg.KeepWait = DefaultKeepWait
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	keep := make(map[string]struct{}, len(cfg.Keep))
	for _, typ := range cfg.Keep {
		keep[typ] = struct{}{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		keep:       keep,
		keepWait:   cfg.KeepWait,
		queue:      make(chan Event, cfg.BufferSize),
		closing:    make(chan struct{}),
		drained:    make(chan struct{}),
	}
	go d.worker()
	return d
}

// worker exits once the queue is closed and empty.
func (d *Dispatcher) worker() {
	defer close(d.drained)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. Events arriving after Shutdown are ignored.
//
// With DropIfFull a full queue drops the event, except kept types, which
// wait up to KeepWait. Without it Emit waits for room until ctx ends. Every
// event given up on is counted in Dropped.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	select {
	case <-d.closing:
		return
	default:
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
			return
		default:
		}
		if _, ok := d.keep[ev.Type]; !ok {
			d.dropped.Add(1)
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.keepWait)
		defer cancel()
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.closing:
	}
}

// Shutdown stops accepting events and waits until the queued ones reached
// the sink or ctx ends. Calling it again only waits.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		close(d.closing)
		d.sendMu.Lock()
		close(d.queue)
		d.sendMu.Unlock()
	})

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Dropped returns the number of events given up on.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed returns the number of events whose sink panicked.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
