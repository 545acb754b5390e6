// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal          *prometheus.CounterVec
	harvestRecordsTotal        *prometheus.CounterVec
	harvestUpsertsTotal        *prometheus.CounterVec
	harvestAIBatchesTotal      *prometheus.CounterVec
	harvestRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	harvestActiveWorkers       prometheus.Gauge
	harvestQueueWaitSeconds    prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total listing pages fetched, labeled by site and tier.",
			},
			[]string{"site", "tier"},
		)

		harvestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_total",
				Help: "Records flowing through the pipeline, labeled by site and stage.",
			},
			[]string{"site", "stage"},
		)

		harvestUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_upserts_total",
				Help: "Document store writes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvestAIBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_ai_batches_total",
				Help: "AI judgment batches, labeled by status.",
			},
			[]string{"status"},
		)

		harvestRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		harvestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_active_workers",
				Help: "Number of workers currently processing a crawl request.",
			},
		)

		harvestQueueWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvest_queue_wait_seconds",
				Help:    "Time a crawl request spent queued before a worker picked it up.",
				Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched listing page for a site. Tier is
// "request" or "render".
func ObservePage(site, tier string) {
	harvestPagesTotal.WithLabelValues(site, tier).Inc()
}

// ObserveRecords counts records passing a pipeline stage.
func ObserveRecords(site, stage string, n int) {
	if n > 0 {
		harvestRecordsTotal.WithLabelValues(site, stage).Add(float64(n))
	}
}

// ObserveUpsert counts a document store write by outcome.
func ObserveUpsert(outcome string) {
	harvestUpsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAIBatch counts an AI judgment batch by status.
func ObserveAIBatch(status string) {
	harvestAIBatchesTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	harvestRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvestActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvestActiveWorkers.Dec()
}

// ObserveQueueWait records how long a request waited in the queue.
func ObserveQueueWait(d time.Duration) {
	if d > 0 {
		harvestQueueWaitSeconds.Observe(d.Seconds())
	}
}
