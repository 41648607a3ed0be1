// Package metrics exposes Prometheus collectors for the classification
// pipeline, the worker pool and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soundwatch"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification runs by outcome (success or failure kind).",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Wall time of a classification run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent reaching each pipeline stage from the previous one.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.runs,
		m.runDuration,
		m.stageDuration,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records the time taken to reach stage.
func (m *Metrics) ObserveStage(stage domain.Stage, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// ObserveRun records a finished classification run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRequest counts a served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// TrackQueue exports the worker pool's queue depth and size.
func (m *Metrics) TrackQueue(depth func() int, workers int) {
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers",
		Help:      "Configured worker goroutines.",
	})
	size.Set(float64(workers))
	m.registry.MustRegister(
		size,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Jobs waiting for a worker.",
		}, func() float64 { return float64(depth()) }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
