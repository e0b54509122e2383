package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFlushCyclesTotal = "metrics_flush_cycles_total"
	MetricFlushDuration    = "metrics_flush_duration_seconds"
	MetricEventsBuffered   = "metrics_events_buffered"
	MetricEventsProcessed  = "metrics_events_processed_total"
	MetricEventsRequeued   = "metrics_events_requeued_total"
	MetricEventsDropped    = "metrics_events_dropped_total"
	MetricQueueDepth       = "queue_depth"
)

// Status constants for flush completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for the aggregation pipeline.
// All operations are thread-safe.
type Metrics struct {
	flushCycles     *prometheus.CounterVec
	flushDuration   prometheus.Histogram
	eventsBuffered  prometheus.Gauge
	eventsProcessed *prometheus.CounterVec
	eventsRequeued  prometheus.Counter
	eventsDropped   prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		flushCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFlushCyclesTotal,
				Help: "Total number of flush cycles by completion status",
			},
			[]string{"status"},
		),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFlushDuration,
			Help:    "Histogram of flush cycle duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}),
		eventsBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricEventsBuffered,
			Help: "Current number of metric events waiting in the buffer",
		}),
		eventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventsProcessed,
				Help: "Total number of metric events processed by kind",
			},
			[]string{"kind"},
		),
		eventsRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsRequeued,
			Help: "Total number of metric events requeued after a failed flush",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsDropped,
			Help: "Total number of metric events dropped by the buffer limit",
		}),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricQueueDepth,
				Help: "Background queue depth by queue and state, refreshed on each health probe",
			},
			[]string{"queue", "state"},
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

// IncFlushCycles increments the flush cycle counter for the given status.
func (m *Metrics) IncFlushCycles(status string) {
	m.flushCycles.WithLabelValues(status).Inc()
}

// ObserveFlushDuration records a flush cycle duration sample.
func (m *Metrics) ObserveFlushDuration(seconds float64) {
	m.flushDuration.Observe(seconds)
}

// SetEventsBuffered records the current buffer depth.
func (m *Metrics) SetEventsBuffered(n int) {
	m.eventsBuffered.Set(float64(n))
}

// AddEventsProcessed adds to the processed counter for a kind.
func (m *Metrics) AddEventsProcessed(kind Kind, n int) {
	m.eventsProcessed.WithLabelValues(string(kind)).Add(float64(n))
}

// AddEventsRequeued adds to the requeued counter.
func (m *Metrics) AddEventsRequeued(n int) {
	m.eventsRequeued.Add(float64(n))
}

// AddEventsDropped adds to the dropped counter.
func (m *Metrics) AddEventsDropped(n int) {
	m.eventsDropped.Add(float64(n))
}

// SetQueueDepth records the depth of one queue state.
func (m *Metrics) SetQueueDepth(queue, state string, depth int64) {
	m.queueDepth.WithLabelValues(queue, state).Set(float64(depth))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.flushCycles,
		m.flushDuration,
		m.eventsBuffered,
		m.eventsProcessed,
		m.eventsRequeued,
		m.eventsDropped,
		m.queueDepth,
	}
}
