// Kunhua Huang 2026

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "editorbridge"

// Collector holds the bridge's Prometheus series. It satisfies the TCP
// server's connection observer and backs the metrics interceptor.
type Collector struct {
	registry *prometheus.Registry

	connectionsActive   prometheus.Gauge
	connectionsTotal    prometheus.Counter
	connectionsRejected prometheus.Counter
	acceptErrors        prometheus.Counter
	frameErrors         *prometheus.CounterVec
	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
}

// NewCollector registers every series on reg. A nil reg gets a fresh
// registry so several servers in one process do not collide.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open control connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted control connections",
		}),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed on accept because the server was at capacity",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Transient accept failures",
		}),
		frameErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_errors_total",
				Help:      "Connections closed because of a framing problem",
			},
			[]string{"kind"},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of dispatched commands",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of command handlers in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.connectionsRejected,
		c.acceptErrors,
		c.frameErrors,
		c.commandsTotal,
		c.commandDuration,
	)

	return c
}

func (c *Collector) ConnectionOpened(id, remoteAddr string) {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

func (c *Collector) ConnectionClosed(id string) {
	c.connectionsActive.Dec()
}

func (c *Collector) ConnectionRejected(remoteAddr string) {
	c.connectionsRejected.Inc()
}

func (c *Collector) AcceptError(err error) {
	c.acceptErrors.Inc()
}

func (c *Collector) FrameError(kind string) {
	c.frameErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveCommand(command, status string, d time.Duration) {
	c.commandsTotal.WithLabelValues(command, status).Inc()
	c.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
