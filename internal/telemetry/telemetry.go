// Package telemetry exposes Prometheus collectors for the modelwatch service.
package telemetry

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
	progressUpdatesTotal       *prometheus.CounterVec
	progressDroppedTotal       *prometheus.CounterVec
	progressSubscribers        prometheus.Gauge
	downloadJobsTotal          *prometheus.CounterVec
	downloadBytesTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the Prometheus collectors. It is safe to call multiple
// times; the observe helpers below call it themselves.
func Init() {
	once.Do(func() {
		progressUpdatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelwatch_progress_updates_total",
				Help: "Total number of progress updates recorded, labeled by status.",
			},
			[]string{"status"},
		)

		progressDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelwatch_progress_dropped_total",
				Help: "Total updates dropped because a subscriber channel was full, labeled by model.",
			},
			[]string{"model"},
		)

		progressSubscribers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "modelwatch_progress_subscribers",
				Help: "Number of currently connected progress subscribers.",
			},
		)

		downloadJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelwatch_download_jobs_total",
				Help: "Total number of download jobs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "modelwatch_download_bytes_total",
				Help: "Total bytes fetched by download workers.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveUpdate increments the progress update counter for the given status.
func ObserveUpdate(status string) {
	Init()
	progressUpdatesTotal.WithLabelValues(status).Inc()
}

// ObserveDroppedUpdate counts an update dropped for one subscriber of model.
func ObserveDroppedUpdate(model string) {
	Init()
	progressDroppedTotal.WithLabelValues(model).Inc()
}

// SubscriberAdded increments the live subscriber gauge.
func SubscriberAdded() {
	Init()
	progressSubscribers.Inc()
}

// SubscriberRemoved decrements the live subscriber gauge.
func SubscriberRemoved() {
	Init()
	progressSubscribers.Dec()
}

// ObserveDownloadJob increments the job counter for the given outcome.
func ObserveDownloadJob(outcome string) {
	Init()
	downloadJobsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDownloadBytes adds fetched bytes to the download byte counter.
func ObserveDownloadBytes(n int64) {
	Init()
	if n > 0 {
		downloadBytesTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
