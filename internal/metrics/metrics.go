// Package metrics declares the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphQLOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lireddit_graphql_operations_total",
			Help: "Total number of GraphQL operations executed",
		},
		[]string{"operation", "status"},
	)

	GraphQLDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lireddit_graphql_duration_seconds",
			Help:    "Time taken to execute GraphQL operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SessionLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lireddit_session_loads_total",
			Help: "Total number of session lookups by outcome",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lireddit_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lireddit_event_publish_failures_total",
			Help: "Total number of domain events that could not be published",
		},
		[]string{"subject"},
	)
)

// Session load outcomes.
const (
	SessionNew     = "new"
	SessionLoaded  = "loaded"
	SessionInvalid = "invalid"
	SessionError   = "error"
)

// OperationName returns name, or "anonymous" for unnamed operations.
func OperationName(name string) string {
	if name == "" {
		return "anonymous"
	}
	return name
}
