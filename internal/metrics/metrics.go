// Package metrics exposes device counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/glade/internal/trigger"
)

// Metrics holds the device collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	// Activations counts accepted triggers by source.
	Activations *prometheus.CounterVec
	// Rejections counts trigger requests that did not activate, by source and reason.
	Rejections *prometheus.CounterVec
	// OutputActive is 1 while the output is asserted.
	OutputActive prometheus.Gauge
	// SettingsSaves counts persisted settings writes by result.
	SettingsSaves *prometheus.CounterVec
	// SettingsSaveLatency records how long a settings write took.
	SettingsSaveLatency prometheus.Histogram
	// IntervalCorrections counts updates whose interval was replaced by the fallback.
	IntervalCorrections prometheus.Counter
	// BrokerConnected is 1 while the MQTT connection is up.
	BrokerConnected prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glade_activations_total",
				Help: "Total number of accepted trigger activations.",
			},
			[]string{"source"}, // timer/button/remote
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glade_rejections_total",
				Help: "Total number of trigger requests that did not activate.",
			},
			[]string{"source", "reason"},
		),
		OutputActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "glade_output_active",
				Help: "Trigger output state (1=asserted, 0=idle).",
			},
		),
		SettingsSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glade_settings_saves_total",
				Help: "Total number of settings writes to non-volatile storage.",
			},
			[]string{"status"}, // success/failed
		),
		SettingsSaveLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "glade_settings_save_seconds",
				Help:    "Latency of settings writes.",
				Buckets: prometheus.DefBuckets,
			},
		),
		IntervalCorrections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "glade_interval_corrections_total",
				Help: "Total number of settings updates with an out-of-range interval.",
			},
		),
		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "glade_mqtt_connected",
				Help: "MQTT broker connectivity (1=connected, 0=disconnected).",
			},
		),
	}

	m.registry.MustRegister(
		m.Activations,
		m.Rejections,
		m.OutputActive,
		m.SettingsSaves,
		m.SettingsSaveLatency,
		m.IntervalCorrections,
		m.BrokerConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome updates counters for a dispatched event.
func (m *Metrics) ObserveOutcome(o trigger.Outcome) {
	switch {
	case o.Accepted:
		m.Activations.WithLabelValues(string(o.Source)).Inc()
		m.OutputActive.Set(1)
	case o.Released:
		m.OutputActive.Set(0)
	case o.Reason != "":
		m.Rejections.WithLabelValues(string(o.Source), string(o.Reason)).Inc()
	}
}

// ObserveSave records a settings write.
func (m *Metrics) ObserveSave(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.SettingsSaves.WithLabelValues(status).Inc()
	m.SettingsSaveLatency.Observe(d.Seconds())
}

// ObserveUpdate records the effect of a settings update.
func (m *Metrics) ObserveUpdate(res trigger.UpdateResult) {
	if res.IntervalCorrected {
		m.IntervalCorrections.Inc()
	}
}

// SetBrokerConnected records MQTT connectivity.
func (m *Metrics) SetBrokerConnected(up bool) {
	if up {
		m.BrokerConnected.Set(1)
		return
	}
	m.BrokerConnected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
