// Package metrics exposes relay counters through Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// Collector implements relay.Metrics using Prometheus.
type Collector struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	deliveries        prometheus.Counter
	sendFailures      prometheus.Counter
}

var _ relay.Metrics = (*Collector)(nil)

// NewCollector creates a collector backed by its own registry, so several
// collectors can coexist in one process.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		connectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_connections_active",
				Help: "Number of currently registered relay connections",
			},
		),
		connectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_connections_total",
				Help: "Total number of relay connections accepted",
			},
		),
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_received_total",
				Help: "Total number of inbound frames by payload kind",
			},
			[]string{"kind"},
		),
		messagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_dropped_total",
				Help: "Total number of inbound frames not forwarded",
			},
			[]string{"reason"},
		),
		deliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_deliveries_total",
				Help: "Total number of messages queued to peers",
			},
		),
		sendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_send_failures_total",
				Help: "Total number of per-peer send failures during fan-out",
			},
		),
	}
}

// ConnectionOpened records a newly registered connection.
func (c *Collector) ConnectionOpened() {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionClosed records a removed connection.
func (c *Collector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// MessageReceived records an inbound frame.
func (c *Collector) MessageReceived(kind relay.PayloadKind) {
	c.messagesReceived.WithLabelValues(kind.String()).Inc()
}

// MessageDropped records an inbound frame that was not forwarded.
func (c *Collector) MessageDropped(reason string) {
	c.messagesDropped.WithLabelValues(reason).Inc()
}

// Delivered records n successful enqueues from a single fan-out.
func (c *Collector) Delivered(n int) {
	if n > 0 {
		c.deliveries.Add(float64(n))
	}
}

// SendFailed records a failed send to one peer.
func (c *Collector) SendFailed() {
	c.sendFailures.Inc()
}

// Handler returns an HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
