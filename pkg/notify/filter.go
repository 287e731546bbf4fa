package notify

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Filter wraps a sink with an event-type filter and a per-type rate limit.
// Events it drops are not errors. Rate limiting uses the event time, so a
// burst published within one window is limited even if delivery lags.
type Filter struct {
	sink Sink

	mu      sync.RWMutex
	limiter *log.Limiter
	enabled func(Type) bool
}

// NewFilter wraps sink. A zero rate disables limiting; a nil enabled passes
// every type.
func NewFilter(sink Sink, rate time.Duration, enabled func(Type) bool) *Filter {
	f := &Filter{sink: sink}
	f.Configure(rate, enabled)
	return f
}

// Configure replaces the rate limit and the type filter. Rate limit
// history is reset.
func (f *Filter) Configure(rate time.Duration, enabled func(Type) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiter = nil
	if rate > 0 {
		f.limiter = log.NewLimiter(rate)
	}
	f.enabled = enabled
}

// Allow reports whether ev would be passed to the wrapped sink, recording
// it against the rate limit when it is.
func (f *Filter) Allow(ev Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.enabled != nil && !f.enabled(ev.Type) {
		return false
	}
	if f.limiter != nil {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		if ok, _ := f.limiter.Allow(ev.rateKey(), at); !ok {
			return false
		}
	}
	return true
}

// Send implements Sink.
func (f *Filter) Send(ctx context.Context, ev Event) error {
	if !f.Allow(ev) {
		return nil
	}
	return f.sink.Send(ctx, ev)
}
