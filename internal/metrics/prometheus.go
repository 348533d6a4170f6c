package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	// Authentication metrics
	authAttemptsTotal *prometheus.CounterVec

	// Request metrics
	requestsTotal *prometheus.CounterVec

	// Delivery metrics
	messagesDeliveredTotal prometheus.Counter
	messagesLostTotal      prometheus.Counter
	messagesSizeBytes      prometheus.Histogram
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maild_connections_total",
			Help: "Total number of client connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maild_connections_active",
			Help: "Number of currently active client connections.",
		}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maild_auth_attempts_total",
			Help: "Total number of registration and login attempts.",
		}, []string{"kind", "result"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maild_requests_total",
			Help: "Total number of protocol requests processed.",
		}, []string{"header"}),

		messagesDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maild_messages_delivered_total",
			Help: "Total number of messages delivered to a mailbox.",
		}),
		messagesLostTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maild_messages_lost_total",
			Help: "Total number of messages diverted to the lost-mail area.",
		}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maild_messages_size_bytes",
			Help:    "Size of delivered message bodies in bytes.",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
		}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.authAttemptsTotal,
		c.requestsTotal,
		c.messagesDeliveredTotal,
		c.messagesLostTotal,
		c.messagesSizeBytes,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(kind, result).Inc()
}

// RequestProcessed increments the request counter.
func (c *PrometheusCollector) RequestProcessed(header string) {
	c.requestsTotal.WithLabelValues(header).Inc()
}

// MessageDelivered increments the delivered counter and observes message size.
func (c *PrometheusCollector) MessageDelivered(sizeBytes int64) {
	c.messagesDeliveredTotal.Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// MessageLost increments the lost-mail counter.
func (c *PrometheusCollector) MessageLost() {
	c.messagesLostTotal.Inc()
}
