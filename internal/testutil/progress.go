package testutil

import (
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

// CollectSink is a ProgressSink that records every published snapshot.
// It is safe for concurrent use.
type CollectSink struct {
	mu        sync.Mutex
	snapshots []replicatypes.ProgressSnapshot
}

// NewCollectSink creates an empty snapshot collector.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Publish implements replicatypes.ProgressSink.
func (c *CollectSink) Publish(snapshot replicatypes.ProgressSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, snapshot)
}

// Snapshots returns a copy of everything published so far.
func (c *CollectSink) Snapshots() []replicatypes.ProgressSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]replicatypes.ProgressSnapshot, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// Aggregate returns only the aggregate (whole-job) snapshots, identified
// by an empty Backend field.
func (c *CollectSink) Aggregate() []replicatypes.ProgressSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []replicatypes.ProgressSnapshot
	for _, s := range c.snapshots {
		if s.Backend == "" {
			out = append(out, s)
		}
	}
	return out
}

// Backend returns only the snapshots published for the named backend.
func (c *CollectSink) Backend(name string) []replicatypes.ProgressSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []replicatypes.ProgressSnapshot
	for _, s := range c.snapshots {
		if s.Backend == name {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent snapshot and whether one exists.
func (c *CollectSink) Last() (replicatypes.ProgressSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return replicatypes.ProgressSnapshot{}, false
	}
	return c.snapshots[len(c.snapshots)-1], true
}

// Verify that CollectSink implements the ProgressSink interface
var _ replicatypes.ProgressSink = (*CollectSink)(nil)
