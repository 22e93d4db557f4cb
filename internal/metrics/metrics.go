// Package metrics exposes Prometheus counters for jobs, push operations,
// link checks and bulk reconciliations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkloom"

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing, so callers never need to guard.
type Metrics struct {
	registry *prometheus.Registry

	JobsStarted     *prometheus.CounterVec
	JobsFinished    *prometheus.CounterVec
	JobItems        *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobsRunning     prometheus.Gauge
	PushOperations  *prometheus.CounterVec
	LinkResults     *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
}

// New builds a Metrics on its own registry, with Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.JobsStarted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "started_total",
		Help:      "Background jobs created",
	}, []string{"kind"})

	m.JobsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Background jobs that reached a terminal status",
	}, []string{"kind", "status"})

	m.JobItems = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "items_total",
		Help:      "Work items committed by background jobs",
	}, []string{"kind"})

	m.JobDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Wall time from start to terminal status",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{"kind"})

	m.JobsRunning = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Jobs currently executing in this process",
	})

	m.PushOperations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "push_operations_total",
		Help:      "Pushed operations by entity type and outcome",
	}, []string{"entity_type", "status"})

	m.LinkResults = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "links",
		Name:      "results_total",
		Help:      "Link check and fetch outcomes by result category",
	}, []string{"result"})

	m.Reconciliations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "reconciliations_total",
		Help:      "Bulk reconciliation applies by mode and status",
	}, []string{"mode", "status"})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) JobStarted(kind string) {
	if m == nil {
		return
	}
	m.JobsStarted.WithLabelValues(kind).Inc()
	m.JobsRunning.Inc()
}

func (m *Metrics) JobFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(kind, status).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.JobsRunning.Dec()
}

func (m *Metrics) JobItem(kind string) {
	if m == nil {
		return
	}
	m.JobItems.WithLabelValues(kind).Inc()
}

func (m *Metrics) PushOperation(entityType, status string) {
	if m == nil {
		return
	}
	m.PushOperations.WithLabelValues(entityType, status).Inc()
}

func (m *Metrics) LinkResult(result string) {
	if m == nil {
		return
	}
	m.LinkResults.WithLabelValues(result).Inc()
}

func (m *Metrics) Reconciliation(mode, status string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(mode, status).Inc()
}
