// Package metrics exposes the hub's Prometheus instruments. Every method is
// nil-safe so components can run without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	readings          *prometheus.CounterVec
	malformed         prometheus.Counter
	unconfigured      prometheus.Counter
	storageFailures   *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	suppressed        *prometheus.CounterVec
	dispatchFailed    *prometheus.CounterVec
	divergent         *prometheus.GaugeVec
	brokerConnected   prometheus.Gauge
	reconnects        prometheus.Counter
	eventBackpressure prometheus.Counter
}

// New creates the instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_readings_total",
			Help: "Sensor readings accepted, by location.",
		}, []string{"location"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_malformed_messages_total",
			Help: "Inbound messages dropped because they could not be decoded.",
		}),
		unconfigured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_unconfigured_readings_total",
			Help: "Readings for locations without control state.",
		}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_storage_failures_total",
			Help: "Failed history appends, by table.",
		}, []string{"table"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_heater_transitions_total",
			Help: "Accepted heater transitions, by location and new state.",
		}, []string{"location", "state"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_heater_transitions_suppressed_total",
			Help: "Transitions suppressed by the cooldown, by location.",
		}, []string{"location"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_dispatch_failures_total",
			Help: "Heater commands that could not be delivered, by heater.",
		}, []string{"heater"}),
		divergent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hub_heater_divergent",
			Help: "1 while the believed heater state of a location is unconfirmed.",
		}, []string{"location"}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_broker_connected",
			Help: "1 while the MQTT session is up and subscribed.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_broker_reconnects_total",
			Help: "Successful MQTT reconnects after a lost session.",
		}),
		eventBackpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hub_event_buffer_saturated_total",
			Help: "Times the inbound event buffer filled and broker delivery had to wait.",
		}),
	}

	m.registry.MustRegister(
		m.readings,
		m.malformed,
		m.unconfigured,
		m.storageFailures,
		m.transitions,
		m.suppressed,
		m.dispatchFailed,
		m.divergent,
		m.brokerConnected,
		m.reconnects,
		m.eventBackpressure,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Reading(location string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(location).Inc()
}

func (m *Metrics) Malformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) Unconfigured() {
	if m == nil {
		return
	}
	m.unconfigured.Inc()
}

func (m *Metrics) StorageFailure(table string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(table).Inc()
}

func (m *Metrics) Transition(location, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(location, state).Inc()
}

func (m *Metrics) Suppressed(location string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(location).Inc()
}

func (m *Metrics) DispatchFailure(heater string) {
	if m == nil {
		return
	}
	m.dispatchFailed.WithLabelValues(heater).Inc()
}

func (m *Metrics) SetDivergent(location string, divergent bool) {
	if m == nil {
		return
	}
	v := 0.0
	if divergent {
		v = 1
	}
	m.divergent.WithLabelValues(location).Set(v)
}

func (m *Metrics) SetBrokerConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.brokerConnected.Set(v)
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) EventBufferSaturated() {
	if m == nil {
		return
	}
	m.eventBackpressure.Inc()
}
