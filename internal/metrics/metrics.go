// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackexchange_api_requests_total",
			Help: "Total number of API requests, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	apiQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stackexchange_api_quota_remaining",
			Help: "Remaining daily request quota as last reported by the API.",
		},
	)

	retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_retry_attempts_total",
			Help: "Retry controller attempts, labeled by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Question pages fetched, labeled by site.",
		},
		[]string{"site"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Normalized records, labeled by site and status (written, skipped, failed).",
		},
		[]string{"site", "status"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_uploads_total",
			Help: "Object store uploads, labeled by status.",
		},
		[]string{"status"},
	)

	activeSites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_active_sites",
			Help: "Number of site runs currently in progress.",
		},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest counts one API call.
func ObserveAPIRequest(endpoint, outcome string) {
	apiRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// SetQuotaRemaining records the quota reported in the latest response.
func SetQuotaRemaining(n int) {
	apiQuotaRemaining.Set(float64(n))
}

// ObserveRetry counts one retry controller outcome.
func ObserveRetry(op, outcome string) {
	retryAttemptsTotal.WithLabelValues(op, outcome).Inc()
}

// ObservePage counts one fetched questions page.
func ObservePage(site string) {
	pagesTotal.WithLabelValues(site).Inc()
}

// ObserveRecord counts one record by outcome.
func ObserveRecord(site, status string) {
	recordsTotal.WithLabelValues(site, status).Inc()
}

// ObserveUpload counts one upload by outcome.
func ObserveUpload(status string) {
	uploadsTotal.WithLabelValues(status).Inc()
}

// IncActiveSites increments the in-progress site gauge.
func IncActiveSites() {
	activeSites.Inc()
}

// DecActiveSites decrements the in-progress site gauge.
func DecActiveSites() {
	activeSites.Dec()
}
