// Package metrics holds the Prometheus collectors for the session host.
//
// All methods are safe on a nil receiver so components can run without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_host"

// Admission results.
const (
	AdmissionAccepted = "accepted"
)

// Metrics collects session host metrics.
type Metrics struct {
	admissions        *prometheus.CounterVec
	rosterSize        prometheus.Gauge
	phase             prometheus.Gauge
	keepAlives        *prometheus.CounterVec
	keepAliveFailures prometheus.Gauge
	unknownClients    *prometheus.CounterVec
	spawns            *prometheus.CounterVec
}

// New registers the session host collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Connection admission decisions by result",
		}, []string{"result"}),

		rosterSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_size",
			Help:      "Number of admitted non-host clients",
		}),

		phase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Current session phase (0 created, 1 hosting, 2 character select, 3 in game, 4 terminated)",
		}),

		keepAlives: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keep_alives_total",
			Help:      "Directory keep-alive rounds by result",
		}, []string{"result"}),

		keepAliveFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keep_alive_consecutive_failures",
			Help:      "Consecutive failed keep-alive rounds",
		}),

		unknownClients: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_client_operations_total",
			Help:      "Operations that referenced a client not in the roster",
		}, []string{"operation"}),

		spawns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawns_total",
			Help:      "Spawn decisions by result",
		}, []string{"result"}),
	}
}

// Admission records an admission verdict. reason is AdmissionAccepted or a rejection reason.
func (m *Metrics) Admission(reason string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RosterSize(n int) {
	if m == nil {
		return
	}
	m.rosterSize.Set(float64(n))
}

func (m *Metrics) Phase(p int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}

// KeepAlive records one keep-alive round and the resulting consecutive failure count.
func (m *Metrics) KeepAlive(ok bool, consecutiveFailures int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.keepAlives.WithLabelValues(result).Inc()
	m.keepAliveFailures.Set(float64(consecutiveFailures))
}

func (m *Metrics) UnknownClient(operation string) {
	if m == nil {
		return
	}
	m.unknownClients.WithLabelValues(operation).Inc()
}

// Spawn records a spawn decision: "spawned", "skipped" or "failed".
func (m *Metrics) Spawn(result string) {
	if m == nil {
		return
	}
	m.spawns.WithLabelValues(result).Inc()
}
