// Package counters tracks the mock's process-lifetime statistics: the
// synthetic drcId sequence, accepted-submission counts per entity kind, and
// per-response-label counts for the stats endpoint.
package counters

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultDRCIDSeed is the starting value of the synthetic id sequence. The
// first issued id is the seed plus one.
const DefaultDRCIDSeed = 11

// Counters holds atomic counters shared by all request handlers. Increments
// never lose updates under concurrency; values reset only on explicit Reset
// or process restart.
type Counters struct {
	drcID        atomic.Int64
	contribution atomic.Int64
	fdc          atomic.Int64
	seed         int64

	mu     sync.RWMutex
	labels map[string]*atomic.Int64
}

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	// DRCID is the last synthetic id issued (the seed if none issued yet).
	DRCID int64 `json:"drcId"`
	// ConcorCount is the number of accepted Concor Contribution submissions.
	ConcorCount int64 `json:"concorCount"`
	// FdcCount is the number of accepted FDC submissions.
	FdcCount int64 `json:"fdcCount"`
	// Labels maps response labels to occurrence counts.
	Labels map[string]int64 `json:"labels,omitempty"`
}

// New creates Counters with the drcId sequence starting at seed. Non-positive
// seeds fall back to DefaultDRCIDSeed.
func New(seed int64) *Counters {
	if seed <= 0 {
		seed = DefaultDRCIDSeed
	}
	c := &Counters{
		seed:   seed,
		labels: make(map[string]*atomic.Int64),
	}
	c.drcID.Store(seed)
	return c
}

// NextDRCID atomically increments and returns the synthetic id counter.
// With the default seed of 11 the first accepted submission is issued 12.
func (c *Counters) NextDRCID() int64 {
	return c.drcID.Add(1)
}

// IncAccepted increments the accepted-submission count for an entity kind.
// Called exactly once per id's first successful transition, never on
// duplicate repeats. Unknown kinds are ignored.
func (c *Counters) IncAccepted(entity string) {
	switch entity {
	case "Contribution":
		c.contribution.Add(1)
	case "Fdc":
		c.fdc.Add(1)
	}
}

// Accepted returns the accepted-submission count for an entity kind.
func (c *Counters) Accepted(entity string) int64 {
	switch entity {
	case "Contribution":
		return c.contribution.Load()
	case "Fdc":
		return c.fdc.Load()
	default:
		return 0
	}
}

// IncLabel increments the count for a response label.
func (c *Counters) IncLabel(label string) {
	c.mu.RLock()
	counter, ok := c.labels[label]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		// Double-check after acquiring the write lock.
		counter, ok = c.labels[label]
		if !ok {
			counter = &atomic.Int64{}
			c.labels[label] = counter
		}
		c.mu.Unlock()
	}
	counter.Add(1)
}

// LabelNames returns the known response labels in sorted order.
func (c *Counters) LabelNames() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.labels))
	for name := range c.labels {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time copy of every counter.
func (c *Counters) Snapshot() Snapshot {
	snap := Snapshot{
		DRCID:       c.drcID.Load(),
		ConcorCount: c.contribution.Load(),
		FdcCount:    c.fdc.Load(),
		Labels:      make(map[string]int64),
	}
	c.mu.RLock()
	for name, counter := range c.labels {
		snap.Labels[name] = counter.Load()
	}
	c.mu.RUnlock()
	return snap
}

// Reset restores all counters to their initial state, including the drcId
// sequence. Offered to test teardown through the admin API.
func (c *Counters) Reset() {
	c.drcID.Store(c.seed)
	c.contribution.Store(0)
	c.fdc.Store(0)
	c.mu.Lock()
	c.labels = make(map[string]*atomic.Int64)
	c.mu.Unlock()
}
