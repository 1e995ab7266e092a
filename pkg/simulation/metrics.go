package simulation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SimRequestsTotal counts simulated requests by behavior and outcome.
	SimRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productpulse_sim_requests_total",
			Help: "Total simulated analysis requests issued",
		},
		[]string{"behavior", "outcome"},
	)

	// SimSessionsTotal counts finished sessions by result.
	SimSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productpulse_sim_sessions_total",
			Help: "Total simulated sessions reaching a terminal state",
		},
		[]string{"result"},
	)

	// SimRequestDuration observes simulated request latency.
	SimRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "productpulse_sim_request_duration_seconds",
			Help:    "Latency of simulated analysis requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SimActiveSessions tracks currently running sessions.
	SimActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "productpulse_sim_active_sessions",
			Help: "Number of simulated sessions currently in flight",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(SimRequestsTotal)
	prometheus.MustRegister(SimSessionsTotal)
	prometheus.MustRegister(SimRequestDuration)
	prometheus.MustRegister(SimActiveSessions)
}
