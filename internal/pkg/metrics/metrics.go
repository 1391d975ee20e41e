// Package metrics holds the prometheus collectors for summary generation and the queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	duration    prometheus.Histogram
	queueJobs   *prometheus.CounterVec
	queueDepth  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tldr_generations_total",
			Help: "Summary generations by content source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tldr_generation_duration_seconds",
			Help:    "Wall time of summary generations that reached the provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		queueJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tldr_queue_jobs_total",
			Help: "Scheduler job outcomes (success, skipped, deferred, dropped).",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tldr_queue_depth",
			Help: "Entries waiting in the processing queue.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations,
		m.duration,
		m.queueJobs,
		m.queueDepth,
	)
	return m
}

// ObserveGeneration records one generation attempt.
func (m *Metrics) ObserveGeneration(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.generations.WithLabelValues(source, outcome).Inc()
	if elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
}

// QueueJob counts a scheduler outcome.
func (m *Metrics) QueueJob(outcome string) {
	if m == nil {
		return
	}
	m.queueJobs.WithLabelValues(outcome).Inc()
}

// SetQueueDepth publishes the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
