package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueryDuration records database query latency
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// DBErrors counts database errors by type
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordQuery records metrics for a database query. Pass a nil error for
// expected outcomes such as "no rows".
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("select_events", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		errorType := "query_error"
		switch {
		case errors.Is(err, context.Canceled):
			errorType = "canceled"
		case errors.Is(err, context.DeadlineExceeded):
			errorType = "timeout"
		}
		DBErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// PoolCollector reports pgx pool statistics at scrape time.
type PoolCollector struct {
	pool *pgxpool.Pool

	open    *prometheus.Desc
	inUse   *prometheus.Desc
	idle    *prometheus.Desc
	maxOpen *prometheus.Desc
}

// NewPoolCollector creates a collector for pool. Register it once per pool.
func NewPoolCollector(pool *pgxpool.Pool) *PoolCollector {
	return &PoolCollector{
		pool:    pool,
		open:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", "connections_open"), "Total number of open database connections", nil, nil),
		inUse:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", "connections_in_use"), "Number of database connections currently in use (acquired)", nil, nil),
		idle:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", "connections_idle"), "Number of idle database connections", nil, nil),
		maxOpen: prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", "connections_max_open"), "Maximum number of open database connections allowed", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.maxOpen
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(stat.MaxConns()))
}
