package synckit

import (
	"sync"
	"time"
)

// MetricsCollector provides hooks for collecting engine metrics
type MetricsCollector interface {
	// RecordDuration records how long an engine operation took
	RecordDuration(operation string, duration time.Duration)

	// RecordSnapshot records the size of a remote snapshot applied by Refresh
	RecordSnapshot(size int)

	// RecordUploads records the outcome of a pending queue pass
	RecordUploads(synced, failed int)

	// RecordError records an operation failure by kind
	RecordError(operation string, kind string)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordDuration(operation string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordSnapshot(size int)                                 {}
func (n *NoOpMetricsCollector) RecordUploads(synced, failed int)                        {}
func (n *NoOpMetricsCollector) RecordError(operation string, kind string)               {}

// CountingMetricsCollector keeps running totals in memory. The CLI prints
// them and tests assert on them.
type CountingMetricsCollector struct {
	mu        sync.Mutex
	Calls     map[string]int
	Errors    map[string]int
	Snapshots int
	Synced    int
	Failed    int
}

func NewCountingMetricsCollector() *CountingMetricsCollector {
	return &CountingMetricsCollector{
		Calls:  make(map[string]int),
		Errors: make(map[string]int),
	}
}

func (c *CountingMetricsCollector) RecordDuration(operation string, _ time.Duration) {
	c.mu.Lock()
	c.Calls[operation]++
	c.mu.Unlock()
}

func (c *CountingMetricsCollector) RecordSnapshot(size int) {
	c.mu.Lock()
	c.Snapshots++
	c.mu.Unlock()
}

func (c *CountingMetricsCollector) RecordUploads(synced, failed int) {
	c.mu.Lock()
	c.Synced += synced
	c.Failed += failed
	c.mu.Unlock()
}

func (c *CountingMetricsCollector) RecordError(operation string, kind string) {
	c.mu.Lock()
	c.Errors[operation+":"+kind]++
	c.mu.Unlock()
}

// Snapshot returns a copy of the totals that is safe to read.
func (c *CountingMetricsCollector) Snapshot() (calls map[string]int, errs map[string]int, synced, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls = make(map[string]int, len(c.Calls))
	for k, v := range c.Calls {
		calls[k] = v
	}
	errs = make(map[string]int, len(c.Errors))
	for k, v := range c.Errors {
		errs[k] = v
	}
	return calls, errs, c.Synced, c.Failed
}
