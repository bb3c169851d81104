// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesVisitedTotal    prometheus.Counter
	valuesCollectedTotal prometheus.Counter
	fetchErrorsTotal     prometheus.Counter
	fetchRetriesTotal    prometheus.Counter
	enginesInFlight      prometheus.Gauge
	fetchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		pagesVisitedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_pages_visited_total",
			Help: "Total number of pages for which a fetch completed, successfully or not.",
		})
		valuesCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_values_collected_total",
			Help: "Total number of non-null extracted values appended to the result set.",
		})
		fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_fetch_errors_total",
			Help: "Total number of permanently failed page fetches.",
		})
		fetchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkharvest_fetch_retries_total",
			Help: "Total number of timed-out fetches re-queued for retry.",
		})
		enginesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linkharvest_engines_in_flight",
			Help: "Number of engines currently running a fetch.",
		})
		fetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkharvest_fetch_duration_seconds",
			Help:    "Page fetch latency, including navigation and extraction.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		})
	})
}

// IncVisited counts one completed fetch.
func IncVisited() {
	if pagesVisitedTotal != nil {
		pagesVisitedTotal.Inc()
	}
}

// IncCollected counts one collected artifact.
func IncCollected() {
	if valuesCollectedTotal != nil {
		valuesCollectedTotal.Inc()
	}
}

// IncErrors counts one permanent fetch failure.
func IncErrors() {
	if fetchErrorsTotal != nil {
		fetchErrorsTotal.Inc()
	}
}

// IncRetries counts one re-queued timeout.
func IncRetries() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// FetchStarted moves the in-flight gauge up.
func FetchStarted() {
	if enginesInFlight != nil {
		enginesInFlight.Inc()
	}
}

// FetchFinished moves the in-flight gauge down.
func FetchFinished() {
	if enginesInFlight != nil {
		enginesInFlight.Dec()
	}
}

// ObserveFetchDuration records one fetch latency sample.
func ObserveFetchDuration(d time.Duration) {
	if fetchDurationSeconds != nil {
		fetchDurationSeconds.Observe(d.Seconds())
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
