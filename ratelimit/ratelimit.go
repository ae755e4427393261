// Package ratelimit provides a per-identity sliding-window rate limiter.
//
// The limiter admits at most N requests per identity within any trailing
// window of the configured period. State is in memory only; a process
// restart resets all windows. Idle identities are reaped so the window
// map cannot grow without bound.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults applied when New receives non-positive values.
const (
	// DefaultLimit is the default number of admissions per period
	DefaultLimit = 10

	// DefaultPeriod is the default trailing window length
	DefaultPeriod = time.Minute

	// DefaultIdleTTL is how long an identity may stay idle before its
	// window is evicted
	DefaultIdleTTL = 15 * time.Minute
)

// Limiter admits at most limit requests per identity within any trailing
// window of period. All methods are safe for concurrent use.
type Limiter struct {
	limit   int
	period  time.Duration
	idleTTL time.Duration

	mu        sync.Mutex
	windows   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithIdleTTL overrides how long an idle identity's window is retained.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

// WithClock overrides the limiter's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter admitting limit requests per identity per period.
// Non-positive arguments fall back to the package defaults.
func New(limit int, period time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	l := &Limiter{
		limit:   limit,
		period:  period,
		idleTTL: DefaultIdleTTL,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow reports whether identity may proceed right now and records the
// attempt when admitted. Denied attempts are not recorded and do not
// extend the window.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	window := l.pruneLocked(identity, now)
	if len(window) >= l.limit {
		l.windows[identity] = window
		return false
	}
	l.windows[identity] = append(window, now)
	return true
}

// RetryAfter returns how long identity must wait until Allow can admit it
// again. Zero means a request would be admitted now.
func (l *Limiter) RetryAfter(identity string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.pruneLocked(identity, now)
	if len(window) == 0 {
		delete(l.windows, identity)
		return 0
	}
	l.windows[identity] = window
	if len(window) < l.limit {
		return 0
	}
	return window[0].Add(l.period).Sub(now)
}

// pruneLocked returns identity's window with every timestamp outside the
// trailing period dropped. Timestamps exactly one period old no longer
// count against the limit.
func (l *Limiter) pruneLocked(identity string, now time.Time) []time.Time {
	window := l.windows[identity]
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}

// sweepLocked evicts identities whose last activity is older than the idle
// TTL. It runs at most once per period so Allow stays cheap on the hot
// path.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.period {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.idleTTL)
	for id, window := range l.windows {
		if len(window) == 0 || window[len(window)-1].Before(cutoff) {
			delete(l.windows, id)
		}
	}
}
