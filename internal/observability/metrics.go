package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the adapter
// API.
type Metrics struct {
	EventsCreated      prometheus.Counter
	EventsDeleted      prometheus.Counter
	PointsInserted     prometheus.Counter
	AggregationQueries *prometheus.CounterVec // label: op

	RequestDuration *prometheus.HistogramVec // labels: method, route, status
}

// NewMetrics creates and registers all API metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsCreated,
		m.EventsDeleted,
		m.PointsInserted,
		m.AggregationQueries,
		m.RequestDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default
// registry, avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrodb",
			Name:      "events_created_total",
			Help:      "Total event rows created.",
		}),
		EventsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrodb",
			Name:      "events_deleted_total",
			Help:      "Total event rows deleted (cascading to their points).",
		}),
		PointsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrodb",
			Name:      "points_inserted_total",
			Help:      "Total timeseries points written by bulk inserts.",
		}),
		AggregationQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrodb",
			Name:      "aggregation_queries_total",
			Help:      "Aggregation queries served, by group operation.",
		}, []string{"op"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydrodb",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
}
