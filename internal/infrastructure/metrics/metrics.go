// Package metrics exposes hearth's Prometheus instruments.
//
// Metrics owns a private registry so several instances (one per test) can
// coexist. Handler serves it in the Prometheus text format at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hearth"

// Metrics groups every instrument the pipeline updates.
type Metrics struct {
	registry *prometheus.Registry

	commands           *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	hardwareFailures   *prometheus.CounterVec
	automationTriggers *prometheus.CounterVec
	languageDuration   prometheus.Histogram
	powerWatts         prometheus.Gauge
	energyWh           prometheus.Gauge
}

// New creates and registers the instruments plus Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by resolved intent and interpretation source.",
		}, []string{"intent", "source"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "End-to-end command handling latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result (hit or miss).",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_transitions_total",
			Help:      "Committed device state changes.",
		}, []string{"device", "state"}),
		hardwareFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_failures_total",
			Help:      "Pin writes that failed or timed out.",
		}, []string{"device"}),
		automationTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_triggers_total",
			Help:      "Automation rules that fired.",
		}, []string{"rule"}),
		languageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "language_inference_seconds",
			Help:      "Language backend round-trip time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		powerWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_watts",
			Help:      "Current draw of all devices that are on.",
		}),
		energyWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_wh",
			Help:      "Cumulative energy consumed since start.",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.cacheLookups,
		m.transitions,
		m.hardwareFailures,
		m.automationTriggers,
		m.languageDuration,
		m.powerWatts,
		m.energyWh,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand counts one command and records its latency.
func (m *Metrics) ObserveCommand(intent, source string, elapsed time.Duration) {
	m.commands.WithLabelValues(intent, source).Inc()
	m.commandDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveCacheLookup counts a hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveTransition counts a committed state change.
func (m *Metrics) ObserveTransition(device string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	m.transitions.WithLabelValues(device, state).Inc()
}

// ObserveHardwareFailure counts a failed pin write.
func (m *Metrics) ObserveHardwareFailure(device string) {
	m.hardwareFailures.WithLabelValues(device).Inc()
}

// ObserveAutomation counts a fired rule.
func (m *Metrics) ObserveAutomation(rule string) {
	m.automationTriggers.WithLabelValues(rule).Inc()
}

// ObserveInference records a language backend round trip.
func (m *Metrics) ObserveInference(elapsed time.Duration) {
	m.languageDuration.Observe(elapsed.Seconds())
}

// SetEnergy publishes the current draw and cumulative consumption.
func (m *Metrics) SetEnergy(powerWatts, energyWh float64) {
	m.powerWatts.Set(powerWatts)
	m.energyWh.Set(energyWh)
}
