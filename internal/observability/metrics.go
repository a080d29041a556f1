// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine and its service
// surface.
type Metrics struct {
	// Engine metrics
	Configurations   prometheus.Counter
	SlicesExecuted   prometheus.Counter
	SliceRejections  *prometheus.CounterVec
	OrderStatusValue prometheus.Gauge

	// Market metrics
	OracleQuotes  prometheus.Counter
	VenueSwaps    prometheus.Counter
	QuoteStoreErr prometheus.Counter

	// Notification metrics
	FillsRecorded    prometheus.Counter
	EventsRecorded   prometheus.Counter
	RecorderErrors   prometheus.Counter
	StreamClients    prometheus.Gauge
	StreamDropsTotal prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "twap_engine"
	}

	return &Metrics{
		Configurations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "configurations_total",
			Help:      "Total strategy configuration events.",
		}),
		SlicesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "slices_executed_total",
			Help:      "Total successfully executed slices.",
		}),
		SliceRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "slice_rejections_total",
			Help:      "Total rejected slice executions by reason.",
		}, []string{"reason"}),
		OrderStatusValue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "order_status",
			Help:      "Current order status (0=open 1=partial 2=filled 3=cancelled).",
		}),

		OracleQuotes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "oracle_quotes_total",
			Help:      "Total oracle quotes observed.",
		}),
		VenueSwaps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "venue_swaps_total",
			Help:      "Total venue swap invocations.",
		}),
		QuoteStoreErr: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "quote_store_errors_total",
			Help:      "Total failures persisting oracle quotes.",
		}),

		FillsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "fills_recorded_total",
			Help:      "Total fill notifications persisted.",
		}),
		EventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "order_events_recorded_total",
			Help:      "Total order-status notifications persisted.",
		}),
		RecorderErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "recorder_errors_total",
			Help:      "Total failures persisting notifications.",
		}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "stream_clients",
			Help:      "Currently connected websocket subscribers.",
		}),
		StreamDropsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "stream_drops_total",
			Help:      "Subscribers dropped for slow consumption.",
		}),
	}
}
