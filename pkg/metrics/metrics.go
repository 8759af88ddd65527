package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Rule evaluation metrics
	RuleEvaluations *prometheus.CounterVec
	MessagesCreated prometheus.Counter

	// Delivery metrics
	DeliveriesProcessed *prometheus.CounterVec
	DeliveryLatency     *prometheus.HistogramVec
	DeliveryQueueSize   prometheus.Gauge

	// Job metrics
	JobRunDuration *prometheus.HistogramVec
	JobRunsSkipped *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates the application metrics. Nothing is registered until Register is called.
func New(namespace string) *Metrics {
	return &Metrics{
		RuleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      "Total number of notification rule evaluations",
		}, []string{"result"}),
		MessagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_created_total",
			Help:      "Total number of delivery items created by rule evaluation",
		}),
		DeliveriesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_processed_total",
			Help:      "Total number of delivery items dispatched",
		}, []string{"system", "status"}),
		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_send_duration_seconds",
			Help:      "Time spent in transport adapters",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"system"}),
		DeliveryQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivery_queue_size",
			Help:      "Number of pending delivery items seen by the last dispatch run",
		}),
		JobRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Duration of scheduled job runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		JobRunsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_skipped_total",
			Help:      "Job runs skipped because another instance holds the lock",
		}, []string{"job"}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.RuleEvaluations,
		m.MessagesCreated,
		m.DeliveriesProcessed,
		m.DeliveryLatency,
		m.DeliveryQueueSize,
		m.JobRunDuration,
		m.JobRunsSkipped,
		m.DatabaseOperations,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
