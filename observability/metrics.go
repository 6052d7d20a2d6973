package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Order lifecycle metrics
	OrdersSubmittedTotal *prometheus.CounterVec
	OrdersExecutedTotal  *prometheus.CounterVec
	OrdersCancelledTotal *prometheus.CounterVec
	OrderDuration        *prometheus.HistogramVec

	// Reservation metrics
	ReservationFailuresTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		OrdersSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "orders",
				Name:      "submitted_total",
				Help:      "Total number of orders submitted, by side and resulting state",
			},
			[]string{"side", "state"},
		),
		OrdersExecutedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "orders",
				Name:      "executed_total",
				Help:      "Total number of orders executed",
			},
			[]string{"side"},
		),
		OrdersCancelledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "orders",
				Name:      "cancelled_total",
				Help:      "Total number of orders cancelled",
			},
			[]string{"side"},
		),
		OrderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "broker_ledger",
				Subsystem: "orders",
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine operations in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "status"},
		),
		ReservationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "ledger",
				Name:      "reservation_failures_total",
				Help:      "Total number of failed funds or share reservations",
			},
			[]string{"kind"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "broker_ledger",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broker_ledger",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "broker_ledger",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordOrderSubmitted records an order submission and its resulting state
func (m *Metrics) RecordOrderSubmitted(side, state string) {
	m.OrdersSubmittedTotal.WithLabelValues(side, state).Inc()
}

// RecordOrderExecuted records an order execution
func (m *Metrics) RecordOrderExecuted(side string) {
	m.OrdersExecutedTotal.WithLabelValues(side).Inc()
}

// RecordOrderCancelled records an order cancellation
func (m *Metrics) RecordOrderCancelled(side string) {
	m.OrdersCancelledTotal.WithLabelValues(side).Inc()
}

// RecordOperationDuration records the duration of an engine operation
func (m *Metrics) RecordOperationDuration(operation, status string, duration time.Duration) {
	m.OrderDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordReservationFailure records a failed funds or share reservation
func (m *Metrics) RecordReservationFailure(kind string) {
	m.ReservationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveOperation records the engine operation duration and status
func (t *Timer) ObserveOperation(operation, status string) {
	t.metrics.RecordOperationDuration(operation, status, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}
