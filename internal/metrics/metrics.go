package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics holds all Prometheus metrics for the backtest engine's own
// operation, as distinct from the strategy performance figures the
// Performance Analyzer computes about a run's trades.
type EngineMetrics struct {
	// External data fetcher metrics
	FetchRequestsTotal *prometheus.CounterVec
	FetchRetriesTotal  *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	CircuitBreakerTrips *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheStoreErrors *prometheus.CounterVec

	// Replay engine metrics
	BarsProcessedTotal *prometheus.CounterVec
	BarProcessDuration *prometheus.HistogramVec
	RunDuration        *prometheus.HistogramVec
	OrdersFilledTotal  *prometheus.CounterVec
	OrdersRejectedTotal *prometheus.CounterVec

	// Parameter sweep metrics
	SweepRunsTotal      *prometheus.CounterVec
	SweepActiveRuns     prometheus.Gauge
	SweepRunDuration    prometheus.Histogram
}

// NewEngineMetrics creates and registers all Prometheus metrics under the
// given namespace (empty defaults to "backtest").
func NewEngineMetrics(namespace string) *EngineMetrics {
	if namespace == "" {
		namespace = "backtest"
	}

	return &EngineMetrics{
		FetchRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Total number of external market data fetch requests",
			},
			[]string{"symbol", "interval", "status"},
		),
		FetchRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Total number of retried market data fetch attempts",
			},
			[]string{"symbol", "reason"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "External data fetch duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol", "interval"},
		),
		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"breaker"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cached-month coverage hits",
			},
			[]string{"symbol", "interval"},
		),
		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cached-month coverage misses requiring a fetch",
			},
			[]string{"symbol", "interval"},
		),
		CacheStoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_store_errors_total",
				Help:      "Total number of cache store errors",
			},
			[]string{"operation"},
		),

		BarsProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_processed_total",
				Help:      "Total number of bars processed by the replay engine",
			},
			[]string{"symbol"},
		),
		BarProcessDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bar_process_duration_seconds",
				Help:      "Time taken to process a single bar in the replay loop",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"symbol"},
		),
		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Total wall-clock duration of a backtest run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"symbol", "strategy"},
		),
		OrdersFilledTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_filled_total",
				Help:      "Total number of simulated orders filled",
			},
			[]string{"symbol", "side"},
		),
		OrdersRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_rejected_total",
				Help:      "Total number of simulated orders rejected",
			},
			[]string{"symbol", "reason"},
		),

		SweepRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Total number of parameter sweep grid points executed",
			},
			[]string{"strategy", "status"},
		),
		SweepActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_active_runs",
				Help:      "Number of backtest runs currently executing within a sweep",
			},
		),
		SweepRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_run_duration_seconds",
				Help:      "Duration of a single sweep grid point's backtest run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
	}
}

// Every recording method below is nil-receiver-safe so callers can thread a
// possibly-nil *EngineMetrics through every layer (metrics are opt-in behind
// -metrics-addr) without an if-m-!= nil check at each call site.

func (m *EngineMetrics) RecordFetchRequest(symbol, interval, status string) {
	if m == nil {
		return
	}
	m.FetchRequestsTotal.WithLabelValues(symbol, interval, status).Inc()
}

func (m *EngineMetrics) RecordFetchRetry(symbol, reason string) {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.WithLabelValues(symbol, reason).Inc()
}

func (m *EngineMetrics) ObserveFetchDuration(symbol, interval string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(symbol, interval).Observe(d.Seconds())
}

func (m *EngineMetrics) RecordCircuitBreakerTrip(breaker string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(breaker).Inc()
}

func (m *EngineMetrics) SetCircuitBreakerState(breaker string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(breaker).Set(state)
}

func (m *EngineMetrics) RecordCacheHit(symbol, interval string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(symbol, interval).Inc()
}

func (m *EngineMetrics) RecordCacheMiss(symbol, interval string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(symbol, interval).Inc()
}

func (m *EngineMetrics) RecordCacheStoreError(operation string) {
	if m == nil {
		return
	}
	m.CacheStoreErrors.WithLabelValues(operation).Inc()
}

func (m *EngineMetrics) RecordBarProcessed(symbol string) {
	if m == nil {
		return
	}
	m.BarsProcessedTotal.WithLabelValues(symbol).Inc()
}

func (m *EngineMetrics) ObserveBarProcessDuration(symbol string, d time.Duration) {
	if m == nil {
		return
	}
	m.BarProcessDuration.WithLabelValues(symbol).Observe(d.Seconds())
}

func (m *EngineMetrics) ObserveRunDuration(symbol, strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(symbol, strategy).Observe(d.Seconds())
}

func (m *EngineMetrics) RecordOrderFilled(symbol, side string) {
	if m == nil {
		return
	}
	m.OrdersFilledTotal.WithLabelValues(symbol, side).Inc()
}

func (m *EngineMetrics) RecordOrderRejected(symbol, reason string) {
	if m == nil {
		return
	}
	m.OrdersRejectedTotal.WithLabelValues(symbol, reason).Inc()
}

func (m *EngineMetrics) RecordSweepRun(strategy, status string) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.WithLabelValues(strategy, status).Inc()
}

func (m *EngineMetrics) IncSweepActiveRuns() {
	if m == nil {
		return
	}
	m.SweepActiveRuns.Inc()
}

func (m *EngineMetrics) DecSweepActiveRuns() {
	if m == nil {
		return
	}
	m.SweepActiveRuns.Dec()
}

func (m *EngineMetrics) ObserveSweepRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepRunDuration.Observe(d.Seconds())
}
