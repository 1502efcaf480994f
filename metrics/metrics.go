// Package metrics exposes Prometheus metrics for call channels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the metrics shared by every channel it is given to.
// A nil *Collector is valid and records nothing.
type Collector struct {
	callsSent       *prometheus.CounterVec
	callsCompleted  *prometheus.CounterVec
	requestsHandled *prometheus.CounterVec
	protocolErrors  *prometheus.CounterVec
	pending         prometheus.Gauge
	channels        prometheus.Gauge
}

// New creates a collector and registers its metrics with reg.
// If reg is nil, the metrics are created but not registered.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		callsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wscall",
				Name:      "calls_sent_total",
				Help:      "Total number of calls sent to the peer",
			},
			[]string{"path"},
		),
		callsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wscall",
				Name:      "calls_completed_total",
				Help:      "Total number of outbound calls completed, by outcome",
			},
			[]string{"outcome"},
		),
		requestsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wscall",
				Name:      "requests_handled_total",
				Help:      "Total number of inbound calls handled, by outcome",
			},
			[]string{"outcome"},
		),
		protocolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wscall",
				Name:      "protocol_errors_total",
				Help:      "Total number of protocol errors, by kind",
			},
			[]string{"kind"},
		),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wscall",
			Name:      "pending_calls",
			Help:      "Number of outbound calls waiting for a response",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wscall",
			Name:      "open_channels",
			Help:      "Number of open channels",
		}),
	}

	if reg == nil {
		return c, nil
	}

	for _, col := range []prometheus.Collector{
		c.callsSent,
		c.callsCompleted,
		c.requestsHandled,
		c.protocolErrors,
		c.pending,
		c.channels,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// CallSent records an outbound call to path
func (c *Collector) CallSent(path string) {
	if c == nil {
		return
	}
	c.callsSent.WithLabelValues(path).Inc()
	c.pending.Inc()
}

// CallCompleted records the outcome of an outbound call.
// outcome is one of "success", "failure" or "closed".
func (c *Collector) CallCompleted(outcome string) {
	if c == nil {
		return
	}
	c.callsCompleted.WithLabelValues(outcome).Inc()
	c.pending.Dec()
}

// RequestHandled records the outcome of an inbound call
func (c *Collector) RequestHandled(outcome string) {
	if c == nil {
		return
	}
	c.requestsHandled.WithLabelValues(outcome).Inc()
}

// ProtocolError records a protocol error of the given kind
func (c *Collector) ProtocolError(kind string) {
	if c == nil {
		return
	}
	c.protocolErrors.WithLabelValues(kind).Inc()
}

// ChannelOpened records that a channel was created
func (c *Collector) ChannelOpened() {
	if c == nil {
		return
	}
	c.channels.Inc()
}

// ChannelClosed records that a channel was torn down
func (c *Collector) ChannelClosed() {
	if c == nil {
		return
	}
	c.channels.Dec()
}
