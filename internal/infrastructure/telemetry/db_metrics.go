package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records query counts and latency through gorm callbacks and
// observes the connection pool on every collection.
type DBMetrics struct {
	queryTotal     *Counter
	queryErrors    *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	slowQuery      time.Duration
	registration   metric.Registration
	logger         *zap.Logger
}

// NewDBMetrics creates the instruments and, when sqlDB is non-nil, pool
// gauges read from sqlDB.Stats at collection time
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, slowQuery time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if slowQuery <= 0 {
		slowQuery = defaultSlowQueryThreshold
	}
	m := &DBMetrics{slowQuery: slowQuery, logger: logger}

	var err error
	if m.queryTotal, err = NewCounter(meter, "db_query_total", "Database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Failed database statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	if sqlDB != nil {
		if err := m.observePool(meter, sqlDB); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *DBMetrics) observePool(meter metric.Meter, sqlDB *sql.DB) error {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Pool connections by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for"), metric.WithUnit("{wait}"))
	if err != nil {
		return err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(maxConns, int64(stats.MaxOpenConnections))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, conns, maxConns, waits)
	return err
}

// RecordQuery records one finished statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration, err error) {
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation)}
	if table != "" {
		attrs = append(attrs, AttrDBTable.String(table))
	}

	m.queryTotal.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, d, attrs...)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
	if d > m.slowQuery {
		m.slowQueryTotal.Inc(ctx, attrs...)
	}
}

// Register installs the query callbacks on db
func (m *DBMetrics) Register(db *gorm.DB) error {
	for _, c := range callbackChains(db) {
		if err := c.before("db_metrics:before_"+c.op, markQueryStart); err != nil {
			return err
		}
		if err := c.after("db_metrics:after_"+c.op, m.afterCallback(c.op)); err != nil {
			return err
		}
	}
	m.logger.Info("Database metrics enabled", zap.Duration("slow_query_threshold", m.slowQuery))
	return nil
}

func (m *DBMetrics) afterCallback(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		elapsed, _ := queryElapsed(ctx)
		m.RecordQuery(ctx, operationName(op, db.Statement.SQL.String()), db.Statement.Table, elapsed, db.Error)
	}
}

// Stop unregisters the pool callback
func (m *DBMetrics) Stop() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

// operationName maps a gorm operation to a SQL verb; row and raw statements
// are classified from their text
func operationName(op, statement string) string {
	switch op {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	statement = strings.ToUpper(strings.TrimSpace(statement))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH"} {
		if strings.HasPrefix(statement, verb) {
			if verb == "WITH" {
				return "SELECT"
			}
			return verb
		}
	}
	return "OTHER"
}
