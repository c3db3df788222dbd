package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the number of latency buckets, the last being +Inf.
const BucketCount = 8

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
	sumNs   uint64
}

// Registry stores a fixed number of counters and histograms.
// A nil or disabled Registry accepts writes and records nothing.
type Registry struct {
	enabled    bool
	latency    bool
	counters   []paddedCounter
	histograms []histogram
}

// New allocates a registry. Histograms are only recorded when latency is true.
func New(counters, histograms int, enabled, latency bool) *Registry {
	r := &Registry{
		enabled: enabled,
		latency: enabled && latency,
	}
	if enabled {
		r.counters = make([]paddedCounter, counters)
	}
	if r.latency {
		r.histograms = make([]histogram, histograms)
	}
	return r
}

func (r *Registry) Enabled() bool { return r != nil && r.enabled }

func (r *Registry) LatencyEnabled() bool { return r != nil && r.latency }

func (r *Registry) Inc(i int) {
	if r == nil || i < 0 || i >= len(r.counters) {
		return
	}
	atomic.AddUint64(&r.counters[i].value, 1)
}

func (r *Registry) Load(i int) uint64 {
	if r == nil || i < 0 || i >= len(r.counters) {
		return 0
	}
	return atomic.LoadUint64(&r.counters[i].value)
}

// Observe records d into histogram h.
func (r *Registry) Observe(h int, d time.Duration) {
	if r == nil || h < 0 || h >= len(r.histograms) {
		return
	}
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&r.histograms[h].buckets[BucketIndex(d)], 1)
	atomic.AddUint64(&r.histograms[h].sumNs, uint64(d))
}

// Buckets returns the non-cumulative bucket counts and the sum of observations.
func (r *Registry) Buckets(h int) ([BucketCount]uint64, time.Duration, bool) {
	var out [BucketCount]uint64
	if r == nil || h < 0 || h >= len(r.histograms) {
		return out, 0, false
	}
	for i := range out {
		out[i] = atomic.LoadUint64(&r.histograms[h].buckets[i])
	}
	return out, time.Duration(atomic.LoadUint64(&r.histograms[h].sumNs)), true
}

// BucketIndex maps a duration onto ≤5ms, ≤10ms, ≤25ms, ≤50ms, ≤100ms, ≤250ms, ≤500ms, +Inf.
func BucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
