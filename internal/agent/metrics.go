package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts notable agent events.
type Metrics struct {
	registry *prometheus.Registry

	BootstrapsCompleted prometheus.Counter
	PublishFailures     prometheus.Counter
	LivenessFailures    prometheus.Counter
}

// NewMetrics creates and registers the agent metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		BootstrapsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanched",
			Name:      "bootstraps_completed_total",
			Help:      "Completed bootstrap runs.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanched",
			Name:      "publish_failures_total",
			Help:      "Failed readiness marker publishes.",
		}),
		LivenessFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avalanched",
			Name:      "liveness_failures_total",
			Help:      "Failed local node liveness probes.",
		}),
	}
	registry.MustRegister(m.BootstrapsCompleted, m.PublishFailures, m.LivenessFailures)
	return m
}

// Handler exposes the metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
