package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig opts the server into Prometheus instrumentation.
// Atomic counters are always kept; Prometheus registration happens only
// when Registerer is set.
type MetricsConfig struct {
	Registerer prometheus.Registerer
}

// Stats is a point-in-time snapshot of delivery counters.
type Stats struct {
	TicksRouted        int64 `json:"ticks_routed"`
	UpdatesSent        int64 `json:"updates_sent"`
	UpdatesCoalesced   int64 `json:"updates_coalesced"`
	ClientsActive      int64 `json:"clients_active"`
	HandshakeFailures  int64 `json:"handshake_failures"`
	ProtocolViolations int64 `json:"protocol_violations"`
	FlushQueueFull     int64 `json:"flush_queue_full"`
}

type metrics struct {
	ticksRouted        atomic.Int64
	updatesSent        atomic.Int64
	updatesCoalesced   atomic.Int64
	clientsActive      atomic.Int64
	handshakeFailures  atomic.Int64
	protocolViolations atomic.Int64
	fullQueue          atomic.Int64

	prom *promMetrics
}

type promMetrics struct {
	ticksRouted        prometheus.Counter
	updatesSent        prometheus.Counter
	updatesCoalesced   prometheus.Counter
	clientsActive      prometheus.Gauge
	handshakeFailures  prometheus.Counter
	protocolViolations prometheus.Counter
	flushQueueFull     prometheus.Counter
}

func newMetrics(config MetricsConfig) *metrics {
	m := &metrics{}
	if config.Registerer == nil {
		return m
	}

	p := &promMetrics{
		ticksRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_ticks_routed_total",
			Help: "Normalized updates routed through the fan-out path",
		}),
		updatesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_updates_sent_total",
			Help: "Live data update messages written to clients",
		}),
		updatesCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_updates_coalesced_total",
			Help: "Pending values replaced before delivery",
		}),
		clientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickstream_clients_active",
			Help: "Authenticated client connections",
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_handshake_failures_total",
			Help: "Connection requests rejected as not authorized",
		}),
		protocolViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_protocol_violations_total",
			Help: "Connections closed for violating the message protocol",
		}),
		flushQueueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_flush_queue_full_total",
			Help: "Flushes run inline because the delivery queue was full",
		}),
	}
	config.Registerer.MustRegister(
		p.ticksRouted, p.updatesSent, p.updatesCoalesced, p.clientsActive,
		p.handshakeFailures, p.protocolViolations, p.flushQueueFull,
	)
	m.prom = p
	return m
}

func (m *metrics) tickRouted() {
	m.ticksRouted.Add(1)
	if m.prom != nil {
		m.prom.ticksRouted.Inc()
	}
}

func (m *metrics) updateSent() {
	m.updatesSent.Add(1)
	if m.prom != nil {
		m.prom.updatesSent.Inc()
	}
}

func (m *metrics) updateCoalesced() {
	m.updatesCoalesced.Add(1)
	if m.prom != nil {
		m.prom.updatesCoalesced.Inc()
	}
}

func (m *metrics) clientConnected() {
	m.clientsActive.Add(1)
	if m.prom != nil {
		m.prom.clientsActive.Inc()
	}
}

func (m *metrics) clientDisconnected() {
	m.clientsActive.Add(-1)
	if m.prom != nil {
		m.prom.clientsActive.Dec()
	}
}

func (m *metrics) handshakeFailed() {
	m.handshakeFailures.Add(1)
	if m.prom != nil {
		m.prom.handshakeFailures.Inc()
	}
}

func (m *metrics) protocolViolation() {
	m.protocolViolations.Add(1)
	if m.prom != nil {
		m.prom.protocolViolations.Inc()
	}
}

func (m *metrics) flushQueueFull() {
	m.fullQueue.Add(1)
	if m.prom != nil {
		m.prom.flushQueueFull.Inc()
	}
}

func (m *metrics) snapshot() Stats {
	return Stats{
		TicksRouted:        m.ticksRouted.Load(),
		UpdatesSent:        m.updatesSent.Load(),
		UpdatesCoalesced:   m.updatesCoalesced.Load(),
		ClientsActive:      m.clientsActive.Load(),
		HandshakeFailures:  m.handshakeFailures.Load(),
		ProtocolViolations: m.protocolViolations.Load(),
		FlushQueueFull:     m.fullQueue.Load(),
	}
}
