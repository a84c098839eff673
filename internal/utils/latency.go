package utils

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencyTracker stores recent duration samples and computes percentiles.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{maxSize: maxSize}
}

// Observe records a new duration.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples = append(l.samples, d)
	if len(l.samples) > l.maxSize {
		// Drop oldest sample to bound memory.
		copy(l.samples[0:], l.samples[1:])
		l.samples = l.samples[:l.maxSize]
	}
}

// Percentile returns the empirical percentile (0-100) duration. Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	values := make([]float64, len(l.samples))
	for i, s := range l.samples {
		values[i] = float64(s)
	}
	l.mu.RUnlock()

	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	switch {
	case p <= 0:
		return time.Duration(values[0])
	case p >= 100:
		return time.Duration(values[len(values)-1])
	}
	return time.Duration(stat.Quantile(p/100, stat.Empirical, values, nil))
}

// Count returns number of samples recorded.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}
