// Package metrics exposes Prometheus collectors for the command channel.
package metrics

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "homepin"

// OutcomeOK labels successful commands; failures use their error code.
const OutcomeOK = "ok"

// Metrics holds the daemon collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry    *prometheus.Registry
	commands    *prometheus.CounterVec
	pinDuration prometheus.Histogram
	pinInFlight prometheus.Gauge
	supported   prometheus.Gauge
	logRecords  *prometheus.CounterVec
	panics      *prometheus.CounterVec
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by method and outcome (ok or error code).",
		}, []string{"method", "outcome"}),
		pinDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pin_duration_seconds",
			Help:      "Time from pin dispatch to submission result, including icon decoding.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		pinInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pin_in_flight",
			Help:      "Pin commands currently running on worker goroutines.",
		}),
		supported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pin_supported",
			Help:      "1 when the host accepted pin requests at the last check.",
		}),
		logRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_records_total",
			Help:      "Warning and error log records, by level.",
		}, []string{"level"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_panics_total",
			Help:      "Panics recovered in restartable background workers, by worker.",
		}, []string{"worker"}),
	}
	m.registry.MustRegister(
		m.commands,
		m.pinDuration,
		m.pinInFlight,
		m.supported,
		m.logRecords,
		m.panics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand counts one handled command.
func (m *Metrics) ObserveCommand(method, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(method, outcome).Inc()
}

// PinStarted marks a pin worker as running and returns the func that marks
// it finished and records its duration.
func (m *Metrics) PinStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.pinInFlight.Inc()
	return func() {
		m.pinInFlight.Dec()
		m.pinDuration.Observe(time.Since(start).Seconds())
	}
}

// SetPinSupported records the latest support probe answer.
func (m *Metrics) SetPinSupported(v bool) {
	if m == nil {
		return
	}
	if v {
		m.supported.Set(1)
		return
	}
	m.supported.Set(0)
}

// ObserveLog counts a log record.
func (m *Metrics) ObserveLog(level slog.Level) {
	if m == nil {
		return
	}
	m.logRecords.WithLabelValues(strings.ToLower(level.String())).Inc()
}

// ObserveWorkerPanic counts one recovered panic in a background worker.
func (m *Metrics) ObserveWorkerPanic(worker string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(worker).Inc()
}
