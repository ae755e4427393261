// Package progress implements throttled transfer progress accounting.
//
// A Tracker accumulates byte counts per backend stream plus a whole-job
// aggregate, and publishes ProgressSnapshot values to a caller-supplied
// sink. Publication is throttled: a stream publishes when the configured
// minimum interval has passed or its completion percentage moved by the
// configured step, whichever comes first. Final snapshots always flush.
//
// The tracker performs no I/O itself and publishes outside its lock, so
// transfer workers are never blocked by a consumer.
package progress

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// Defaults applied when options are not given.
const (
	// DefaultMinInterval is the minimum time between snapshots of one stream
	DefaultMinInterval = time.Second

	// DefaultPercentStep is the percent movement that forces a snapshot
	DefaultPercentStep = 5.0
)

// aggregateKey identifies the whole-job entry.
const aggregateKey = ""

// Tracker accumulates byte counts for one job and publishes throttled
// snapshots. All methods are safe for concurrent use.
type Tracker struct {
	jobID       string
	sink        replicatypes.ProgressSink
	minInterval time.Duration
	percentStep float64
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// entry tracks one stream (a backend, or the job aggregate).
type entry struct {
	total       int64
	transferred int64
	started     time.Time
	lastSample  time.Time
	lastPublish time.Time
	lastPercent float64
	speed       ewma.SimpleEWMA
	done        bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMinInterval overrides the minimum time between snapshots.
func WithMinInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.minInterval = d
		}
	}
}

// WithPercentStep overrides the percent movement that forces a snapshot.
func WithPercentStep(step float64) Option {
	return func(t *Tracker) {
		if step > 0 {
			t.percentStep = step
		}
	}
}

// WithClock overrides the tracker's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker for jobID publishing to sink. A nil sink
// yields a tracker whose methods are all no-ops.
func NewTracker(jobID string, sink replicatypes.ProgressSink, opts ...Option) *Tracker {
	t := &Tracker{
		jobID:       jobID,
		sink:        sink,
		minInterval: DefaultMinInterval,
		percentStep: DefaultPercentStep,
		now:         time.Now,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.entries[aggregateKey] = t.newEntry(0)
	return t
}

// Register declares a stream and its expected total. The job aggregate's
// total grows by the same amount.
func (t *Tracker) Register(backend string, total int64) {
	if t.sink == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[backend]; ok {
		return
	}
	t.entries[backend] = t.newEntry(total)
	t.entries[aggregateKey].total += total
}

// Update adds delta transferred bytes to a stream and to the aggregate,
// publishing throttled snapshots for both.
func (t *Tracker) Update(backend string, delta int64) {
	if t.sink == nil || delta <= 0 {
		return
	}

	t.mu.Lock()
	now := t.now()
	var out []replicatypes.ProgressSnapshot
	for _, key := range []string{backend, aggregateKey} {
		e, ok := t.entries[key]
		if !ok {
			e = t.newEntry(0)
			t.entries[key] = e
		}
		e.transferred += delta
		if elapsed := now.Sub(e.lastSample); elapsed > 0 {
			e.speed.Add(float64(delta) / elapsed.Seconds())
			e.lastSample = now
		}
		if snap, publish := t.throttledLocked(key, e, now); publish {
			out = append(out, snap)
		}
	}
	t.mu.Unlock()

	for _, snap := range out {
		t.sink.Publish(snap)
	}
}

// Complete marks a stream finished and flushes its final snapshot.
func (t *Tracker) Complete(backend string) {
	t.finish(backend)
}

// Finish flushes the job aggregate's final snapshot. Call it once when
// the job is over, whatever the outcome.
func (t *Tracker) Finish() {
	t.finish(aggregateKey)
}

func (t *Tracker) finish(key string) {
	if t.sink == nil {
		return
	}

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.done {
		t.mu.Unlock()
		return
	}
	e.done = true
	snap := t.snapshotLocked(key, e, t.now())
	t.mu.Unlock()

	t.sink.Publish(snap)
}

func (t *Tracker) newEntry(total int64) *entry {
	now := t.now()
	return &entry{
		total:       total,
		started:     now,
		lastSample:  now,
		lastPublish: now,
	}
}

// throttledLocked decides whether a stream owes the sink a snapshot.
func (t *Tracker) throttledLocked(key string, e *entry, now time.Time) (replicatypes.ProgressSnapshot, bool) {
	snap := t.snapshotLocked(key, e, now)
	if now.Sub(e.lastPublish) < t.minInterval && snap.Percent-e.lastPercent < t.percentStep {
		return replicatypes.ProgressSnapshot{}, false
	}
	e.lastPublish = now
	e.lastPercent = snap.Percent
	return snap, true
}

func (t *Tracker) snapshotLocked(key string, e *entry, now time.Time) replicatypes.ProgressSnapshot {
	pct := 0.0
	if e.total > 0 {
		pct = float64(e.transferred) / float64(e.total) * 100
	}
	speed := e.speed.Value()
	eta := time.Duration(-1)
	switch {
	case e.done:
		eta = 0
	case speed > 0 && e.total > 0:
		remaining := float64(e.total - e.transferred)
		if remaining < 0 {
			remaining = 0
		}
		eta = time.Duration(remaining / speed * float64(time.Second))
	}
	return replicatypes.ProgressSnapshot{
		JobID:            t.jobID,
		Backend:          key,
		BytesTransferred: e.transferred,
		TotalBytes:       e.total,
		Percent:          pct,
		Speed:            speed,
		ETA:              eta,
		Elapsed:          now.Sub(e.started),
		Done:             e.done,
	}
}
