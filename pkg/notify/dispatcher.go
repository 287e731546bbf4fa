package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
)

const (
	defaultQueueSize = 64
	sendTimeout      = 30 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	QueueSize int
	OnDrop    func() // called for every event dropped on a full queue
}

// Dispatcher queues events on a bounded channel and delivers them to its
// sinks from a single worker goroutine. Publish never blocks. Every sink
// sees every event; per-sink filtering is done by wrapping a sink in a
// Filter.
type Dispatcher struct {
	queue  chan Event
	sinks  []Sink
	lg     *slog.Logger
	onDrop func()

	mu     sync.RWMutex
	closed bool

	dropped   atomic.Int64
	delivered atomic.Int64
	done      chan struct{}
}

// NewDispatcher creates a Dispatcher over sinks.
func NewDispatcher(opts Options, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue:  make(chan Event, opts.QueueSize),
		sinks:  sinks,
		lg:     log.With("component", "notify"),
		onDrop: opts.OnDrop,
		done:   make(chan struct{}),
	}
}

// Publish enqueues ev. It returns ErrQueueFull or ErrClosed when ev is not
// queued.
func (d *Dispatcher) Publish(ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- ev:
		return nil
	default:
		d.dropped.Add(1)
		if d.onDrop != nil {
			d.onDrop()
		}
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled or the dispatcher is
// closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			d.lg.Warn("notification failed", "type", string(ev.Type), "error", err)
		}
	}
	d.delivered.Add(1)
}

// Close stops accepting events. Run drains what is already queued and
// returns; Close waits for that up to ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many events were lost to a full queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Delivered reports how many events were handed to the sinks.
func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }
