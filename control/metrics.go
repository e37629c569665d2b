// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the WebSocket engine, servers, registry and RPC layer.
// A nil *Metrics is valid and records nothing.

package control

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/rcom/api"
)

const metricsNamespace = "rcom"

// Metrics holds every collector exported by an rcom process.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	HandshakeFailures   *prometheus.CounterVec
	MessagesReceived    *prometheus.CounterVec
	MessagesSent        *prometheus.CounterVec
	ProtocolFaults      *prometheus.CounterVec
	ActiveLinks         *prometheus.GaugeVec
	RegistryRequests    *prometheus.CounterVec
	RegistryTopics      prometheus.Gauge
	RPCCalls            *prometheus.CounterVec
	RPCDuration         *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConnectionsAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "server",
				Name:      "connections_accepted_total",
				Help:      "Total number of TCP connections accepted",
			},
		),

		HandshakeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "websocket",
				Name:      "handshake_failures_total",
				Help:      "Total number of failed WebSocket handshakes",
			},
			[]string{"role"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "websocket",
				Name:      "messages_received_total",
				Help:      "Total number of complete messages received",
			},
			[]string{"type"},
		),

		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "websocket",
				Name:      "messages_sent_total",
				Help:      "Total number of messages sent",
			},
			[]string{"type"},
		),

		ProtocolFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "websocket",
				Name:      "protocol_faults_total",
				Help:      "Total number of connections failed by a protocol fault, by close code",
			},
			[]string{"code"},
		),

		ActiveLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "server",
				Name:      "active_links",
				Help:      "Number of live WebSocket links held by a server",
			},
			[]string{"server"},
		),

		RegistryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "registry",
				Name:      "requests_total",
				Help:      "Total number of registry requests handled",
			},
			[]string{"request", "outcome"},
		),

		RegistryTopics: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "registry",
				Name:      "topics",
				Help:      "Number of topics currently registered",
			},
		),

		RPCCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total number of RPC calls, by side and outcome",
			},
			[]string{"side", "outcome"},
		),

		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Client-side RPC round-trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConnectionsAccepted,
		m.HandshakeFailures,
		m.MessagesReceived,
		m.MessagesSent,
		m.ProtocolFaults,
		m.ActiveLinks,
		m.RegistryRequests,
		m.RegistryTopics,
		m.RPCCalls,
		m.RPCDuration,
	}
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.ConnectionsAccepted.Inc()
}

func (m *Metrics) HandshakeFailed(role string) {
	if m == nil {
		return
	}
	m.HandshakeFailures.WithLabelValues(role).Inc()
}

func (m *Metrics) MessageReceived(typ api.MessageType) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(typ.String()).Inc()
}

func (m *Metrics) MessageSent(typ api.MessageType) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(typ.String()).Inc()
}

func (m *Metrics) ProtocolFault(code uint16) {
	if m == nil {
		return
	}
	m.ProtocolFaults.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *Metrics) SetActiveLinks(server string, n int) {
	if m == nil {
		return
	}
	m.ActiveLinks.WithLabelValues(server).Set(float64(n))
}

func (m *Metrics) RegistryRequest(request, outcome string) {
	if m == nil {
		return
	}
	m.RegistryRequests.WithLabelValues(request, outcome).Inc()
}

func (m *Metrics) SetRegistryTopics(n int) {
	if m == nil {
		return
	}
	m.RegistryTopics.Set(float64(n))
}

// RPCCall counts one call. side is "client" or "server".
func (m *Metrics) RPCCall(side, outcome string) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(side, outcome).Inc()
}

func (m *Metrics) ObserveRPC(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(method).Observe(d.Seconds())
}
