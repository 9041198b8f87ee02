package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/balanceledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Balance operations
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationDiscrepancies prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceledger_operations_total",
				Help: "Total balance operations by action and result",
			},
			[]string{"action", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "balanceledger_operation_duration_seconds",
				Help:    "Duration of balance operations including lock wait",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "balanceledger_cache_hits_total",
			Help: "Balance reads served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "balanceledger_cache_misses_total",
			Help: "Balance reads that fell through to the store",
		}),
		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceledger_cache_errors_total",
				Help: "Cache failures by operation",
			},
			[]string{"operation"},
		),

		ReconciliationDiscrepancies: factory.NewCounter(prometheus.CounterOpts{
			Name: "balanceledger_reconciliation_discrepancies_total",
			Help: "Accounts whose snapshot differed from their history",
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanceledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "balanceledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "balanceledger_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveOperation records one balance operation.
func (m *Metrics) ObserveOperation(action domain.Action, result string, duration time.Duration) {
	m.Operations.WithLabelValues(string(action), result).Inc()
	m.OperationDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

func (m *Metrics) CacheHit()  { m.CacheHits.Inc() }
func (m *Metrics) CacheMiss() { m.CacheMisses.Inc() }

func (m *Metrics) CacheError(op string) {
	m.CacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ReconciliationDiscrepancy() {
	m.ReconciliationDiscrepancies.Inc()
}
