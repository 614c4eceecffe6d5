package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamMetrics holds all Prometheus metrics for the stream service.
type StreamMetrics struct {
	EventsAppended  *prometheus.CounterVec
	AppendFailures  prometheus.Counter
	PublishFailures prometheus.Counter
	ReadFailures    prometheus.Counter
	EventsRepaired  prometheus.Counter
	SSEClients      prometheus.Gauge
	CheckOperations *prometheus.CounterVec
}

// NewStreamMetrics initializes and registers the Prometheus metrics with reg.
// A nil registerer falls back to the default one.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &StreamMetrics{
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "stream",
			Name:      "events_appended_total",
			Help:      "Total number of events appended to stream logs by event type.",
		}, []string{"event"}),
		AppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "stream",
			Name:      "append_failures_total",
			Help:      "Total number of failed appends to stream logs.",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "stream",
			Name:      "publish_failures_total",
			Help:      "Total number of live-channel publishes that failed.",
		}),
		ReadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "stream",
			Name:      "read_failures_total",
			Help:      "Total number of stream reads that degraded to an empty result.",
		}),
		EventsRepaired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "stream",
			Name:      "events_repaired_total",
			Help:      "Total number of stored events that were malformed and repaired with defaults on read.",
		}),
		SSEClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkstream",
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Number of currently connected SSE clients.",
		}),
		CheckOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkstream",
			Subsystem: "checks",
			Name:      "operations_total",
			Help:      "Total number of check record operations by operation and outcome.",
		}, []string{"operation", "outcome"}), // outcome: ok, invalid, error
	}
}
