// Package metrics exposes marketplace counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resale_transitions_total",
			Help: "Escrow actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	disputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resale_disputes_total",
			Help: "Dispute operations by resulting status",
		},
		[]string{"operation", "status"},
	)

	listings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resale_listings_total",
			Help: "Listing operations",
		},
		[]string{"operation"},
	)

	purchaseConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resale_purchase_conflicts_total",
			Help: "Purchases that lost the race for a listing",
		},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resale_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome labels for Transition.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

func Transition(action, outcome string) {
	transitions.WithLabelValues(action, outcome).Inc()
}

func Dispute(operation, status string) {
	disputes.WithLabelValues(operation, status).Inc()
}

func Listing(operation string) {
	listings.WithLabelValues(operation).Inc()
}

func PurchaseConflict() {
	purchaseConflicts.Inc()
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
