package keycloak

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for provider round trips.
var (
	keycloakRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_keycloak_request_total",
			Help: "Total number of Keycloak requests",
		},
		[]string{"operation", "result"},
	)

	keycloakRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_keycloak_request_duration_seconds",
			Help:    "Duration of Keycloak requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	keycloakBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docstore_keycloak_breaker_state",
			Help: "Circuit breaker state for Keycloak requests (0=closed, 1=half-open, 2=open)",
		},
	)
)
