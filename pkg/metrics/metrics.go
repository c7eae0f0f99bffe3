// Package metrics exposes the pipeline's Prometheus collectors.
//
// All methods are safe on a nil *Metrics, so components can be built without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	fanoutRecords    *prometheus.CounterVec
	schedulerRuns    *prometheus.CounterVec
	busEvents        *prometheus.CounterVec
}

// New creates a registry with Go and process collectors and registers the
// pipeline collectors on it under the given namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		deliveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in provider send calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		fanoutRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_records_total",
			Help:      "Notification records created by template.",
		}, []string{"template"}),
		schedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		busEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Events handled by the bus by kind and result.",
		}, []string{"kind", "result"}),
	}
}

// Delivery records one delivery outcome.
func (m *Metrics) Delivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
}

// SendDuration records how long a provider call took.
func (m *Metrics) SendDuration(channel string, d time.Duration) {
	if m == nil {
		return
	}
	m.deliveryDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// FanoutRecords counts newly created records for a template.
func (m *Metrics) FanoutRecords(template string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fanoutRecords.WithLabelValues(template).Add(float64(n))
}

// SchedulerRun records a job run result: ok, error or skipped.
func (m *Metrics) SchedulerRun(job, result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job, result).Inc()
}

// BusEvent records a handled bus event: ok, retry or dropped.
func (m *Metrics) BusEvent(kind, result string) {
	if m == nil {
		return
	}
	m.busEvents.WithLabelValues(kind, result).Inc()
}

// Registry returns the underlying registry, or nil on a nil receiver.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
