package novels

import (
	"sync/atomic"
	"time"

	"github.com/zxckotee/novels-sub001/persist"
)

// MetricID identifies one session counter or histogram.
type MetricID uint16

const (
	// MetricLogin counts successful sign-ins (login and register).
	MetricLogin MetricID = iota
	// MetricLoginFailure counts rejected sign-in attempts.
	MetricLoginFailure
	// MetricLogout counts user-initiated logouts.
	MetricLogout
	// MetricUnauthorizedLogout counts logouts forced by a failed refresh.
	MetricUnauthorizedLogout
	// MetricRefreshSuccess counts access tokens renewed.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh attempts the API rejected.
	MetricRefreshFailure
	// MetricHydrationRestored counts hydrations that restored a session.
	MetricHydrationRestored
	// MetricHydrationEmpty counts hydrations with nothing stored.
	MetricHydrationEmpty
	// MetricHydrationCorrupt counts hydrations that discarded a bad record.
	MetricHydrationCorrupt
	// MetricHydrationFailed counts hydrations whose storage read failed.
	MetricHydrationFailed
	// MetricPersistWrite counts persisted session writes.
	MetricPersistWrite
	// MetricPersistFailure counts persisted writes that failed.
	MetricPersistFailure
	// MetricHydrationLatency is the storage read latency histogram.
	MetricHydrationLatency
	// MetricPersistLatency is the storage write latency histogram.
	MetricPersistLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free session counters. A nil or disabled Metrics
// ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
// Histogram slices hold per-bucket (not cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for a histogram metric. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isHistogram(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		for _, id := range []MetricID{MetricHydrationLatency, MetricPersistLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func (m *Metrics) recordHydration(outcome persist.Outcome, elapsed time.Duration) {
	switch outcome {
	case persist.OutcomeRestored:
		m.Inc(MetricHydrationRestored)
	case persist.OutcomeEmpty:
		m.Inc(MetricHydrationEmpty)
	case persist.OutcomeCorrupt:
		m.Inc(MetricHydrationCorrupt)
	default:
		m.Inc(MetricHydrationFailed)
	}
	m.Observe(MetricHydrationLatency, elapsed)
}

func isHistogram(id MetricID) bool {
	return id == MetricHydrationLatency || id == MetricPersistLatency
}

// Bucket upper bounds: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, +Inf.
func bucketIndex(d time.Duration) int {
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
