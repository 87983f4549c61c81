package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token verification.
type Metrics struct {
	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	cacheHitsTotal       prometheus.Counter
	cacheMissesTotal     prometheus.Counter
	permissionFetchFails prometheus.Counter
}

// NewMetrics creates auth metrics registered with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates auth metrics registered with the given
// registerer. Passing nil leaves the metrics unregistered, which is useful
// in tests.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Subsystem: "auth",
				Name:      "verifications_total",
				Help:      "Total token verifications by result.",
			},
			[]string{"result"},
		),
		verificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "docstore",
				Subsystem: "auth",
				Name:      "verification_duration_seconds",
				Help:      "Token verification duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Subsystem: "auth",
				Name:      "cache_hits_total",
				Help:      "Total verification cache hits.",
			},
		),
		cacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Subsystem: "auth",
				Name:      "cache_misses_total",
				Help:      "Total verification cache misses.",
			},
		),
		permissionFetchFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docstore",
				Subsystem: "auth",
				Name:      "permission_fetch_failures_total",
				Help:      "Total permission fetches that degraded to an empty list.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.verificationsTotal,
			m.verificationDuration,
			m.cacheHitsTotal,
			m.cacheMissesTotal,
			m.permissionFetchFails,
		)
	}

	return m
}

// RecordVerification records one verification outcome and its duration.
// The result label is "success" or the failure reason.
func (m *Metrics) RecordVerification(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
	m.verificationDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a verification served from cache.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a verification that missed the cache.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Inc()
}

// RecordPermissionFetchFailure records a permission fetch that failed and
// was degraded to an empty permission list.
func (m *Metrics) RecordPermissionFetchFailure() {
	if m == nil {
		return
	}
	m.permissionFetchFails.Inc()
}
