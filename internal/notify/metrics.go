package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricConnectionsActive  = "ws_connections_active"
	MetricNotificationsTotal = "notifications_sent_total"
	MetricBroadcastsTotal    = "channel_broadcasts_total"
	MetricAlertsTotal        = "system_alerts_total"
)

// Delivery status labels.
const (
	DeliverySuccess = "success"
	DeliveryFailure = "failure"
)

// Metrics contains Prometheus metrics for the notification layer.
// All operations are thread-safe.
type Metrics struct {
	connections   prometheus.Gauge
	notifications *prometheus.CounterVec
	broadcasts    prometheus.Counter
	alerts        *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricConnectionsActive,
			Help: "Current number of registered WebSocket connections",
		}),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNotificationsTotal,
				Help: "Total number of user notifications by delivery status",
			},
			[]string{"status"},
		),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricBroadcastsTotal,
			Help: "Total number of channel broadcasts",
		}),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAlertsTotal,
				Help: "Total number of system alerts by alert kind",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncConnections increments the active connection gauge.
func (m *Metrics) IncConnections() {
	m.connections.Inc()
}

// DecConnections decrements the active connection gauge.
func (m *Metrics) DecConnections() {
	m.connections.Dec()
}

// IncNotifications increments the notification counter for a delivery status.
func (m *Metrics) IncNotifications(status string) {
	m.notifications.WithLabelValues(status).Inc()
}

// IncBroadcasts increments the broadcast counter.
func (m *Metrics) IncBroadcasts() {
	m.broadcasts.Inc()
}

// IncAlerts increments the alert counter for an alert kind.
func (m *Metrics) IncAlerts(kind string) {
	m.alerts.WithLabelValues(kind).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connections,
		m.notifications,
		m.broadcasts,
		m.alerts,
	}
}
