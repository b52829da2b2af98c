// Package monitoring exposes Prometheus metrics for the mediation pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	// Channel metrics
	EnvelopesIn     *prometheus.CounterVec // label: outcome (ok, replay, reorder, malformed)
	EnvelopesOut    prometheus.Counter
	HandshakeTotal  *prometheus.CounterVec // label: outcome (ok, failed)

	// Gate metrics
	GateDecisions *prometheus.CounterVec // labels: capability, decision

	// Execution metrics
	CallDuration *prometheus.HistogramVec // label: capability
	CallErrors   *prometheus.CounterVec   // labels: capability, code

	// Threat metrics
	ThreatEvents *prometheus.CounterVec
	Containments prometheus.Counter
	Terminations prometheus.Counter

	// Honeypot metrics
	HoneypotRequests *prometheus.CounterVec // label: service
	HoneypotFaults   prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge

	startTime time.Time
	Uptime    prometheus.Gauge
}

// New creates the gateway collectors on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the collectors on an explicit registry, so tests can hold
// isolated metric sets.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),
		EnvelopesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_envelopes_in_total",
			Help: "Inbound envelopes by verification outcome",
		}, []string{"outcome"}),
		EnvelopesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "mediator_envelopes_out_total",
			Help: "Outbound envelopes sealed",
		}),
		HandshakeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_handshakes_total",
			Help: "Session handshakes by outcome",
		}, []string{"outcome"}),
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_gate_decisions_total",
			Help: "Capability gate decisions",
		}, []string{"capability", "decision"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediator_call_duration_seconds",
			Help:    "Privileged call execution time",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"capability"}),
		CallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_call_errors_total",
			Help: "Privileged call failures by error code",
		}, []string{"capability", "code"}),
		ThreatEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_threat_events_total",
			Help: "Threat events recorded, by kind",
		}, []string{"kind"}),
		Containments: factory.NewCounter(prometheus.CounterOpts{
			Name: "mediator_containments_total",
			Help: "Sessions moved into the deception environment",
		}),
		Terminations: factory.NewCounter(prometheus.CounterOpts{
			Name: "mediator_terminations_total",
			Help: "Sessions terminated",
		}),
		HoneypotRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediator_honeypot_requests_total",
			Help: "Contained calls served by deception services",
		}, []string{"service"}),
		HoneypotFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "mediator_honeypot_faults_total",
			Help: "Internal honeypot faults degraded to empty success",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediator_sessions_active",
			Help: "Live sessions, any state",
		}),
		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mediator_uptime_seconds",
			Help: "Gateway uptime",
		}),
	}
}

// Tick refreshes gauges derived from wall time.
func (m *Metrics) Tick() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
