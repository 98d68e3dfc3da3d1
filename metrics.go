package storeauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a store counter or histogram.
type MetricID uint16

const (
	MetricBootstrapCompleted MetricID = iota
	MetricBootstrapTimeout
	MetricStaleCredentialPurged
	MetricCorruptCredentialPurged
	MetricEventReceived
	MetricEventDuplicateInitial
	MetricSessionCleared
	MetricProfileLookupAttempt
	MetricProfileLookupFailure
	MetricProfileResolved
	MetricProfileFallback
	MetricProfileCanceled
	MetricProfileDiscarded
	MetricSignInSuccess
	MetricSignInFailure
	MetricSignUpSuccess
	MetricSignUpFailure
	MetricSignUpConfirmSuccess
	MetricSignUpConfirmFailure
	MetricSignOut
	MetricSignOutProviderFailure
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricCodeResend
	MetricOperationPanic
	MetricProfileResolveLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the profile resolution
// histogram. A final overflow bucket follows the last bound.
var LatencyBounds = [...]time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
}

const latencyBucketCount = len(LatencyBounds) + 1

// counterSlot sits alone on a cache line so hot counters do not share one.
type counterSlot struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled  bool
	latency  bool
	counters [metricIDCount]counterSlot
	resolve  [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram slices
// hold non-cumulative bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricProfileResolveLatency {
		return
	}
	m.resolve[latencyBucket(d)].Add(1)
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies all counters. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricProfileResolveLatency {
			snap.Counters[id] = m.counters[id].Load()
		}
	}
	if m.latency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.resolve[i].Load()
		}
		snap.Histograms[MetricProfileResolveLatency] = buckets
	}
	return snap
}

func latencyBucket(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
