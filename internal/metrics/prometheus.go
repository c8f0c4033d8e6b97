package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with Prometheus vectors.
type PrometheusCollector struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	scheduledExecuted prometheus.Counter
	scheduledFailed   prometheus.Counter
	scheduledLatency  prometheus.Histogram

	notifications *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewPrometheusCollector creates a collector whose metric names share namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Total number of ledger operations per operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Ledger operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		scheduledExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_transactions_executed_total",
			Help:      "Scheduled transactions executed by the runner",
		}),
		scheduledFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_transactions_failed_total",
			Help:      "Scheduled transactions skipped by the runner",
		}),
		scheduledLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduled_run_duration_seconds",
			Help:      "Duration of a scheduled payment run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification delivery attempts per kind and status",
			},
			[]string{"kind", "status"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests per method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.operations,
		pc.operationLatency,
		pc.scheduledExecuted,
		pc.scheduledFailed,
		pc.scheduledLatency,
		pc.notifications,
		pc.circuitState,
		pc.requests,
		pc.requestLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func (pc *PrometheusCollector) RecordOperation(operation, outcome string, duration time.Duration) {
	pc.operations.WithLabelValues(operation, outcome).Inc()
	pc.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordScheduledRun(executed, failed int, duration time.Duration) {
	pc.scheduledExecuted.Add(float64(executed))
	pc.scheduledFailed.Add(float64(failed))
	pc.scheduledLatency.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordNotification(kind string, success bool) {
	status := "delivered"
	if !success {
		status = "failed"
	}
	pc.notifications.WithLabelValues(kind, status).Inc()
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}

func (pc *PrometheusCollector) RecordRequest(method, route string, status int, duration time.Duration) {
	pc.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pc.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

var _ Collector = (*PrometheusCollector)(nil)
