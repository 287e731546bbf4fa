package log

import (
	"log/slog"
	"sync"
	"time"
)

// Limiter suppresses repeats of the same failure so that a fault which
// recurs every tick produces one line per interval.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	dropped  map[string]int
}

// NewLimiter returns a Limiter that lets one line per key through every interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		last:     make(map[string]time.Time),
		dropped:  make(map[string]int),
	}
}

// Allow reports whether a line for key may be written at now and how many
// lines were suppressed since the previous one.
func (l *Limiter) Allow(key string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok && now.Sub(last) < l.interval {
		l.dropped[key]++
		return false, 0
	}
	n := l.dropped[key]
	l.dropped[key] = 0
	l.last[key] = now
	return true, n
}

// Warn writes msg at warn level on lg when allowed.
func (l *Limiter) Warn(lg *slog.Logger, key, msg string, args ...any) {
	ok, suppressed := l.Allow(key, time.Now())
	if !ok {
		return
	}
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	lg.Warn(msg, args...)
}
