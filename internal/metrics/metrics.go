// Package metrics exposes bridge counters on a Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	UpdatesReceived  *prometheus.CounterVec
	UpdatesDropped   *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	APIErrors        *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	PollConnected    *prometheus.GaugeVec
	WebhookDelivered *prometheus.CounterVec
	MediaSaved       *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		UpdatesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_updates_received_total",
				Help: "Updates received from the platform, by account and kind",
			},
			[]string{"account", "kind"},
		),
		UpdatesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_updates_dropped_total",
				Help: "Updates dropped before reaching the host, by reason",
			},
			[]string{"account", "reason"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_messages_sent_total",
				Help: "Messages delivered to the platform, by account and status",
			},
			[]string{"account", "status"},
		),
		APIErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_api_errors_total",
				Help: "Vendor API errors, by account and HTTP status",
			},
			[]string{"account", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maxbridge_dispatch_duration_seconds",
				Help:    "Time spent handing one update to the host",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"account"},
		),
		PollConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "maxbridge_poll_connected",
				Help: "1 while the long-poll loop is healthy",
			},
			[]string{"account"},
		),
		WebhookDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_webhook_deliveries_total",
				Help: "Webhook deliveries accepted, by account",
			},
			[]string{"account"},
		),
		MediaSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maxbridge_media_saved_total",
				Help: "Attachments persisted to disk, by account and direction",
			},
			[]string{"account", "direction"},
		),
	}

	registry.MustRegister(
		m.UpdatesReceived,
		m.UpdatesDropped,
		m.MessagesSent,
		m.APIErrors,
		m.DispatchDuration,
		m.PollConnected,
		m.WebhookDelivered,
		m.MediaSaved,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
