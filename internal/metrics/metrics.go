// Package metrics exposes Prometheus collectors for the stock watcher.
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
	checksTotal               *prometheus.CounterVec
	restocksTotal             prometheus.Counter
	sweepsTotal               prometheus.Counter
	sweepsSkippedTotal        prometheus.Counter
	fetchChannelAttemptsTotal *prometheus.CounterVec
	checkDurationSeconds      prometheus.Histogram
	sweepDurationSeconds      prometheus.Histogram
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_checks_total",
				Help: "Total number of product checks, labeled by terminal result.",
			},
			[]string{"result"},
		)

		restocksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stockwatch_restocks_total",
				Help: "Total number of restock transitions detected.",
			},
		)

		sweepsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stockwatch_sweeps_total",
				Help: "Total number of completed sweeps.",
			},
		)

		sweepsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stockwatch_sweeps_skipped_total",
				Help: "Sweep requests dropped because a sweep was already running.",
			},
		)

		fetchChannelAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_fetch_channel_attempts_total",
				Help: "Fetch attempts per channel, labeled by outcome.",
			},
			[]string{"channel", "outcome"},
		)

		checkDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockwatch_check_duration_seconds",
				Help:    "Histogram of single product check latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45},
			},
		)

		sweepDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockwatch_sweep_duration_seconds",
				Help:    "Histogram of full sweep durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_http_requests_total",
				Help: "Total number of ops HTTP requests.",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockwatch_http_request_duration_seconds",
				Help:    "Histogram of ops HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck records one completed product check.
func ObserveCheck(result string, dur time.Duration) {
	if checksTotal == nil {
		return
	}
	checksTotal.WithLabelValues(result).Inc()
	checkDurationSeconds.Observe(dur.Seconds())
}

// ObserveRestock records one restock transition.
func ObserveRestock() {
	if restocksTotal == nil {
		return
	}
	restocksTotal.Inc()
}

// ObserveSweep records one completed sweep.
func ObserveSweep(dur time.Duration) {
	if sweepsTotal == nil {
		return
	}
	sweepsTotal.Inc()
	sweepDurationSeconds.Observe(dur.Seconds())
}

// ObserveSweepSkipped records a sweep request dropped by the guard.
func ObserveSweepSkipped() {
	if sweepsSkippedTotal == nil {
		return
	}
	sweepsSkippedTotal.Inc()
}

// ObserveHTTPRequest records one completed ops HTTP request.
func ObserveHTTPRequest(method, route string, status int, dur time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

// ObserveFetchAttempt records one channel attempt and its outcome.
func ObserveFetchAttempt(channel, outcome string) {
	if fetchChannelAttemptsTotal == nil {
		return
	}
	fetchChannelAttemptsTotal.WithLabelValues(channel, outcome).Inc()
}
