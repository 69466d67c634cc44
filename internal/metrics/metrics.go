// Package metrics provides Prometheus instrumentation for the roulette
// core: gauges for queue and session counts, counters for message and
// report outcomes, and histograms for wait times.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueSize tracks the current number of waiting participants.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roulette_queue_size",
		Help: "Current number of participants in the waiting queue",
	})

	// ActiveSessions tracks the current number of active sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roulette_active_sessions",
		Help: "Current number of active chat sessions",
	})

	// MessagesTotal counts relay outcomes, labeled by result:
	// "relayed", "warned", "blocked", or "dropped" (shadow-ban).
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roulette_messages_total",
		Help: "Total number of messages processed by relay outcome",
	}, []string{"outcome"})

	// MatchesTotal counts committed matches.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roulette_matches_total",
		Help: "Total number of committed matches",
	})

	// MatchWaitSeconds records the time a participant waited in the queue
	// before being matched.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roulette_match_wait_seconds",
		Help:    "Queue wait time until a match was committed",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 45, 60},
	})

	// ReportsTotal counts filed reports, labeled by the enforcement action
	// taken: "none", "shadow_ban", or "ban".
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roulette_reports_total",
		Help: "Total number of abuse reports by enforcement action",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(
		QueueSize,
		ActiveSessions,
		MessagesTotal,
		MatchesTotal,
		MatchWaitSeconds,
		ReportsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
