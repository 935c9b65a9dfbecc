// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quizsolver_sessions_started_total",
			Help: "Total number of solve sessions dispatched.",
		},
	)
	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizsolver_sessions_ended_total",
			Help: "Total number of solve sessions that ended, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizsolver_sessions_active",
			Help: "Number of solve sessions currently holding a render session.",
		},
	)
	NavigationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quizsolver_navigation_duration_seconds",
			Help:    "Time spent loading quiz pages until the network settled.",
			Buckets: prometheus.DefBuckets,
		},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizsolver_submissions_total",
			Help: "Answer submissions, labeled by result (next, last, transport_error, protocol_error).",
		},
		[]string{"result"},
	)
	StepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizsolver_step_failures_total",
			Help: "Failures per solver state, including non-fatal answer failures.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(SessionsEnded)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(NavigationDuration)
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(StepFailures)
}

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
