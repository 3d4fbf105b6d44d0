package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the game's prometheus instruments on a private registry.
type Metrics struct {
	BalloonSize      prometheus.Gauge
	ConnectedClients prometheus.Gauge
	Pumps            prometheus.Counter
	Dumps            prometheus.Counter
	Pops             prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		BalloonSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "balloon",
			Name:      "size",
			Help:      "Current balloon size.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "balloon",
			Name:      "connected_clients",
			Help:      "Number of connected websocket observers.",
		}),
		Pumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balloon",
			Name:      "pumps_total",
			Help:      "Accepted pump actions.",
		}),
		Dumps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balloon",
			Name:      "dumps_total",
			Help:      "Accepted dump actions.",
		}),
		Pops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balloon",
			Name:      "pops_total",
			Help:      "Balloon pops.",
		}),
		registry: reg,
	}
	reg.MustRegister(m.BalloonSize, m.ConnectedClients, m.Pumps, m.Dumps, m.Pops)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
