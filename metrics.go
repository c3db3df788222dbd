package goGuard

import (
	"time"

	"github.com/MrEthical07/goGuard/internal/metrics"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricAuthorizeAllow counts Allow decisions.
	MetricAuthorizeAllow MetricID = iota
	// MetricAuthorizePendingApproval counts AllowPendingApproval decisions.
	MetricAuthorizePendingApproval
	// MetricAuthorizeRedirectLogin counts DenyRedirectLogin decisions.
	MetricAuthorizeRedirectLogin
	// MetricAuthorizeMaintenance counts DenyMaintenance decisions.
	MetricAuthorizeMaintenance
	MetricValidateOK
	MetricValidateUnauthorized
	MetricValidateOther
	// MetricRefreshCall counts backend refresh calls (leaders only).
	MetricRefreshCall
	// MetricRefreshShared counts callers that joined a round led by someone else.
	MetricRefreshShared
	MetricRefreshSuccess
	MetricRefreshDead
	MetricRefreshFailure
	MetricRefreshThrottled
	MetricRefreshWaitCanceled
	MetricEarlyExpiry
	MetricDivergence
	MetricStorageError
	MetricSessionCreated
	MetricSessionCleared
	MetricLogout
	// MetricAuthorizeLatency is the end-to-end Authorize histogram.
	MetricAuthorizeLatency
	MetricValidateLatency
	MetricRefreshLatency
	metricIDCount
)

const firstHistogram = MetricAuthorizeLatency

// Metrics is the engine's lock-free metric storage.
type Metrics struct {
	reg *metrics.Registry
}

// MetricsSnapshot is a point-in-time copy of counters and non-cumulative
// histogram buckets.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// HistogramSums holds the sum of observations per histogram.
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics creates metric storage for cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		reg: metrics.New(int(firstHistogram), int(metricIDCount-firstHistogram), cfg.Enabled, cfg.EnableLatencyHistograms),
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.reg.Enabled()
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.reg.LatencyEnabled()
}

// Inc increments a counter. Histogram IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= firstHistogram {
		return
	}
	m.reg.Inc(int(id))
}

// Observe records a latency sample. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || id < firstHistogram || id >= metricIDCount {
		return
	}
	m.reg.Observe(int(id-firstHistogram), d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= firstHistogram {
		return 0
	}
	return m.reg.Load(int(id))
}

// Snapshot copies the current values. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < firstHistogram; id++ {
		s.Counters[id] = m.reg.Load(int(id))
	}
	for id := firstHistogram; id < metricIDCount; id++ {
		buckets, sum, ok := m.reg.Buckets(int(id - firstHistogram))
		if !ok {
			continue
		}
		s.Histograms[id] = append([]uint64(nil), buckets[:]...)
		s.HistogramSums[id] = sum
	}
	return s
}
