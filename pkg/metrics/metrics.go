package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smmpanel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_database_operations_total",
			Help: "Total database operations",
		},
		[]string{"operation", "entity"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smmpanel_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "entity"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_upstream_requests_total",
			Help: "Requests sent to external collaborators",
		},
		[]string{"target", "action", "result"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smmpanel_upstream_request_duration_seconds",
			Help:    "External request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "action"},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_orders_total",
			Help: "Order submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	OrderChargeLocal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smmpanel_order_charge_local",
			Help:    "Charged amount of placed orders in local currency",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12),
		},
	)

	ExchangeRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smmpanel_exchange_rate",
			Help: "USD to local currency rate currently used for pricing",
		},
	)

	ExchangeRateRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_exchange_rate_refresh_total",
			Help: "Exchange rate refresh attempts",
		},
		[]string{"result"},
	)

	CatalogServices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smmpanel_catalog_services",
			Help: "Services in the current catalog snapshot",
		},
	)

	CatalogRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_catalog_refresh_total",
			Help: "Catalog refresh attempts",
		},
		[]string{"result"},
	)

	ReconcileOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_reconcile_orders_total",
			Help: "Orders processed by the status reconciler",
		},
		[]string{"result"},
	)

	ReconcileRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smmpanel_reconcile_run_duration_seconds",
			Help:    "Duration of a reconcile batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmpanel_scheduler_runs_total",
			Help: "Periodic job executions",
		},
		[]string{"job", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smmpanel_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smmpanel_cache_hits_total",
			Help: "Cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smmpanel_cache_misses_total",
			Help: "Cache misses",
		},
	)
)

func RecordHttpRequest(method, endpoint, status string, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordDatabaseOperation(operation, entity string, duration time.Duration) {
	DatabaseOperationsTotal.WithLabelValues(operation, entity).Inc()
	DatabaseOperationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

func RecordUpstreamRequest(target, action string, err error, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(target, action, resultLabel(err)).Inc()
	UpstreamRequestDuration.WithLabelValues(target, action).Observe(duration.Seconds())
}

func RecordOrder(outcome string) {
	OrdersTotal.WithLabelValues(outcome).Inc()
}

func ObserveOrderCharge(amount float64) {
	OrderChargeLocal.Observe(amount)
}

func RecordExchangeRateRefresh(err error) {
	ExchangeRateRefreshTotal.WithLabelValues(resultLabel(err)).Inc()
}

func SetExchangeRate(rate float64) {
	ExchangeRate.Set(rate)
}

func RecordCatalogRefresh(err error, size int) {
	CatalogRefreshTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		CatalogServices.Set(float64(size))
	}
}

func RecordReconcile(checked, updated, failed int, duration time.Duration) {
	ReconcileOrdersTotal.WithLabelValues("checked").Add(float64(checked))
	ReconcileOrdersTotal.WithLabelValues("updated").Add(float64(updated))
	ReconcileOrdersTotal.WithLabelValues("failed").Add(float64(failed))
	ReconcileRunDuration.Observe(duration.Seconds())
}

func RecordSchedulerRun(job string, err error) {
	SchedulerRunsTotal.WithLabelValues(job, resultLabel(err)).Inc()
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
