package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter slot.
type MetricID uint16

const (
	MetricSessionAuthenticated MetricID = iota
	MetricSessionMissingToken
	MetricSessionInvalidPayload
	MetricSessionTokenExpired
	MetricSessionSignatureMismatch
	MetricSessionMissingRoles
	MetricRouteForbidden
	MetricRefreshStarted
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshWaiterQueued
	MetricRefreshRetried
	MetricRefreshRetryExhausted
	MetricRefreshStaleRetry
	MetricForcedLogout
	MetricParseLatency
	MetricRefreshLatency
	metricIDCount
)

// Count is the number of defined metric IDs.
const Count = int(metricIDCount)

var metricNames = [metricIDCount]string{
	MetricSessionAuthenticated:     "session_authenticated",
	MetricSessionMissingToken:      "session_missing_token",
	MetricSessionInvalidPayload:    "session_invalid_payload",
	MetricSessionTokenExpired:      "session_token_expired",
	MetricSessionSignatureMismatch: "session_signature_mismatch",
	MetricSessionMissingRoles:      "session_missing_roles",
	MetricRouteForbidden:           "route_forbidden",
	MetricRefreshStarted:           "refresh_started",
	MetricRefreshSuccess:           "refresh_success",
	MetricRefreshFailure:           "refresh_failure",
	MetricRefreshWaiterQueued:      "refresh_waiter_queued",
	MetricRefreshRetried:           "refresh_retried",
	MetricRefreshRetryExhausted:    "refresh_retry_exhausted",
	MetricRefreshStaleRetry:        "refresh_stale_retry",
	MetricForcedLogout:             "forced_logout",
	MetricParseLatency:             "parse_latency",
	MetricRefreshLatency:           "refresh_latency",
}

// String returns the snake_case export name of id.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsLatency reports whether id carries a histogram.
func (id MetricID) IsLatency() bool {
	return id == MetricParseLatency || id == MetricRefreshLatency
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// BucketBounds are the inclusive upper bounds of the first seven histogram
// buckets; the eighth is +Inf.
var BucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds counters and histograms. Safe for concurrent use.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for a latency metric and bumps its counter.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || id >= metricIDCount || !id.IsLatency() {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
	if !m.enableLatency {
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

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
		if !m.enableLatency || !id.IsLatency() {
			continue
		}
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
		}
		s.Histograms[id] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
