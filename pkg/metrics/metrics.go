package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling metrics
	SlotsComputed        prometheus.Counter
	AvailabilityErrors   prometheus.Counter
	AvailabilityDuration prometheus.Histogram
	ConflictsDetected    *prometheus.CounterVec

	// Ledger metrics
	LedgerActions     *prometheus.CounterVec
	Compensations     *prometheus.CounterVec
	CleanupFailures   *prometheus.CounterVec
	ReconcilerRepairs *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg creates unregistered collectors, which is what tests use.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Scheduling metrics
		SlotsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slots_computed_total",
			Help:      "Total number of available slots returned",
		}),
		AvailabilityErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "availability_errors_total",
			Help:      "Total number of availability computations that failed on a store error",
		}),
		AvailabilityDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "availability_duration_seconds",
			Help:      "Time spent computing available slots",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ConflictsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "conflicts_detected_total",
			Help:      "Total number of overlapping bookings detected",
		}, []string{"operation"}),

		// Ledger metrics
		LedgerActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "actions_total",
			Help:      "Ledger side effects by origin and action",
		}, []string{"origin", "action"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "compensations_total",
			Help:      "Status changes rolled back because the ledger entry could not be written",
		}, []string{"origin"}),
		CleanupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_cleanup_failures_total",
			Help:      "Ledger deletions that failed after a status left its realized state",
		}, []string{"origin"}),
		ReconcilerRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reconciler_repairs_total",
			Help:      "Ledger rows created or removed by the reconciler",
		}, []string{"kind", "status"}),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}
