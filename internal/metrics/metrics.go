// Package metrics wires Prometheus gauges/counters/histograms for the
// pool, executor and dispatcher, adapted from db-bouncer's
// internal/metrics.Collector — the per-tenant label dimension there
// becomes a per-tool-name dimension here, since this adapter serves one
// MySQL instance rather than many tenant backends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric this adapter exports.
type Collector struct {
	Registry *prometheus.Registry

	connectionsActive  prometheus.Gauge
	connectionsIdle    prometheus.Gauge
	connectionsTotal   prometheus.Gauge
	connectionsWaiting prometheus.Gauge
	poolExhausted      prometheus.Counter

	queryDuration   *prometheus.HistogramVec
	acquireDuration prometheus.Histogram

	dispatchTotal   *prometheus.CounterVec
	dispatchErrors  *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
}

// New builds a Collector registered against a fresh registry, safe to
// call more than once (e.g. in tests).
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mysql_mcp_connections_active",
			Help: "Number of connections currently borrowed from the pool",
		}),
		connectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mysql_mcp_connections_idle",
			Help: "Number of idle connections in the pool",
		}),
		connectionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mysql_mcp_connections_total",
			Help: "Total number of physical connections the pool holds",
		}),
		connectionsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mysql_mcp_connections_waiting",
			Help: "Number of callers queued for a connection",
		}),
		poolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysql_mcp_pool_exhausted_total",
			Help: "Total number of times a borrow had to queue because the pool was at max",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mysql_mcp_query_duration_seconds",
			Help:    "Duration of executor Query/Execute calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"kind"}),
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mysql_mcp_acquire_duration_seconds",
			Help:    "Time spent waiting for Pool.Borrow",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysql_mcp_tool_dispatch_total",
			Help: "Total tool dispatch attempts by tool name",
		}, []string{"tool"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysql_mcp_tool_dispatch_errors_total",
			Help: "Total tool dispatch failures by tool name and error code",
		}, []string{"tool", "error"}),
		transactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysql_mcp_transactions_total",
			Help: "Completed transactions by outcome (committed/rolled_back)",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsIdle,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.poolExhausted,
		c.queryDuration,
		c.acquireDuration,
		c.dispatchTotal,
		c.dispatchErrors,
		c.transactionsTotal,
	)

	return c
}

// UpdatePoolStats sets the pool gauges from a point-in-time snapshot.
func (c *Collector) UpdatePoolStats(active, idle, total, waiting int) {
	c.connectionsActive.Set(float64(active))
	c.connectionsIdle.Set(float64(idle))
	c.connectionsTotal.Set(float64(total))
	c.connectionsWaiting.Set(float64(waiting))
}

// PoolExhausted increments the exhaustion counter.
func (c *Collector) PoolExhausted() { c.poolExhausted.Inc() }

// QueryDuration observes one executor call's duration, labeled by
// "query" or "execute".
func (c *Collector) QueryDuration(kind string, d time.Duration) {
	c.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AcquireDuration observes time spent in Pool.Borrow.
func (c *Collector) AcquireDuration(d time.Duration) {
	c.acquireDuration.Observe(d.Seconds())
}

// DispatchAttempt increments the per-tool dispatch counter.
func (c *Collector) DispatchAttempt(tool string) {
	c.dispatchTotal.WithLabelValues(tool).Inc()
}

// DispatchError increments the per-tool/per-error-code failure counter.
func (c *Collector) DispatchError(tool, errorCode string) {
	c.dispatchErrors.WithLabelValues(tool, errorCode).Inc()
}

// TransactionCompleted increments the outcome counter ("committed" or
// "rolled_back").
func (c *Collector) TransactionCompleted(outcome string) {
	c.transactionsTotal.WithLabelValues(outcome).Inc()
}
