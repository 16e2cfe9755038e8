// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for the event coordination core: dispatch, abort, stray
// and flip counters in a thread-safe registry with dynamic keys.

package control

import (
	"sync"
	"time"
)

// Well-known counter keys.
const (
	MetricCompletions = "queue.completions"
	MetricAborts      = "queue.aborts"
	MetricStrays      = "queue.strays"
	MetricFlushes     = "device.flushes"
	MetricFlips       = "pageflip.submitted"
)

// MetricsRegistry holds mutable counters and gauges.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]uint64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]uint64),
	}
}

// Inc adds delta to a counter key.
func (mr *MetricsRegistry) Inc(key string, delta uint64) {
	mr.mu.Lock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Set overwrites a gauge key.
func (mr *MetricsRegistry) Set(key string, value uint64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get reads one key.
func (mr *MetricsRegistry) Get(key string) uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]uint64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
