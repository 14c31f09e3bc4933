package database

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// QueryRecorder receives the outcome of every traced query.
// *metrics.Metrics implements it.
type QueryRecorder interface {
	RecordDBQuery(operation string, duration time.Duration, err error)
}

// QueryLoggerConfig configures query logging behavior.
type QueryLoggerConfig struct {
	// SlowQueryThreshold is the duration above which queries are logged at WARN.
	SlowQueryThreshold time.Duration

	// VerySlowQueryThreshold is the duration above which queries are logged at ERROR.
	VerySlowQueryThreshold time.Duration

	// LogAllQueries enables sampled DEBUG logging of fast queries.
	LogAllQueries bool

	// SampleRate is the fraction of fast queries logged when LogAllQueries is set.
	SampleRate float64
}

// DefaultQueryLoggerConfig returns the default query logging thresholds.
func DefaultQueryLoggerConfig() *QueryLoggerConfig {
	return &QueryLoggerConfig{
		SlowQueryThreshold:     100 * time.Millisecond,
		VerySlowQueryThreshold: 500 * time.Millisecond,
		LogAllQueries:          false,
		SampleRate:             0.1,
	}
}

// QueryStats tracks query statistics.
type QueryStats struct {
	TotalQueries    int64
	SlowQueries     int64
	VerySlowQueries int64
	FailedQueries   int64
	TotalDuration   time.Duration
	mu              sync.RWMutex
	slowestQuery    string
	slowestDuration time.Duration
}

// GetStats returns a copy of the current stats.
func (qs *QueryStats) GetStats() (total, slow, verySlow, failed int64, avgDuration time.Duration) {
	total = atomic.LoadInt64(&qs.TotalQueries)
	slow = atomic.LoadInt64(&qs.SlowQueries)
	verySlow = atomic.LoadInt64(&qs.VerySlowQueries)
	failed = atomic.LoadInt64(&qs.FailedQueries)

	if total > 0 {
		qs.mu.RLock()
		avgDuration = qs.TotalDuration / time.Duration(total)
		qs.mu.RUnlock()
	}
	return
}

// GetSlowestQuery returns the slowest query seen and its duration.
func (qs *QueryStats) GetSlowestQuery() (query string, duration time.Duration) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return qs.slowestQuery, qs.slowestDuration
}

// QueryLogger implements pgx.QueryTracer. It logs slow and failed queries
// and reports every query to a QueryRecorder.
type QueryLogger struct {
	config   *QueryLoggerConfig
	recorder QueryRecorder
	logger   *zap.Logger
	stats    *QueryStats
	sample   uint64
}

// NewQueryLogger creates a new query logger. recorder may be nil.
func NewQueryLogger(cfg *QueryLoggerConfig, recorder QueryRecorder, logger *zap.Logger) *QueryLogger {
	if cfg == nil {
		cfg = DefaultQueryLoggerConfig()
	}
	return &QueryLogger{
		config:   cfg,
		recorder: recorder,
		logger:   logger.Named("query"),
		stats:    &QueryStats{},
	}
}

// Stats returns the query statistics.
func (ql *QueryLogger) Stats() *QueryStats {
	return ql.stats
}

type queryTraceData struct {
	startTime time.Time
	sql       string
}

type ctxKey struct{}

// TraceQueryStart implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, &queryTraceData{
		startTime: time.Now(),
		sql:       data.SQL,
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	traceData, ok := ctx.Value(ctxKey{}).(*queryTraceData)
	if !ok {
		return
	}

	duration := time.Since(traceData.startTime)
	atomic.AddInt64(&ql.stats.TotalQueries, 1)
	if ql.recorder != nil {
		ql.recorder.RecordDBQuery(sqlOperation(traceData.sql), duration, data.Err)
	}

	ql.stats.mu.Lock()
	ql.stats.TotalDuration += duration
	if duration > ql.stats.slowestDuration {
		ql.stats.slowestDuration = duration
		ql.stats.slowestQuery = truncateSQL(traceData.sql, 200)
	}
	ql.stats.mu.Unlock()

	if data.Err != nil {
		atomic.AddInt64(&ql.stats.FailedQueries, 1)
		ql.logger.Error("query failed",
			zap.String("sql", truncateSQL(traceData.sql, 500)),
			zap.Duration("duration", duration),
			zap.Error(data.Err),
		)
		return
	}

	switch {
	case duration >= ql.config.VerySlowQueryThreshold:
		atomic.AddInt64(&ql.stats.VerySlowQueries, 1)
		atomic.AddInt64(&ql.stats.SlowQueries, 1)
		ql.logger.Error("very slow query detected",
			zap.String("sql", truncateSQL(traceData.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", ql.config.VerySlowQueryThreshold),
			zap.String("command_tag", data.CommandTag.String()),
		)
	case duration >= ql.config.SlowQueryThreshold:
		atomic.AddInt64(&ql.stats.SlowQueries, 1)
		ql.logger.Warn("slow query detected",
			zap.String("sql", truncateSQL(traceData.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", ql.config.SlowQueryThreshold),
			zap.String("command_tag", data.CommandTag.String()),
		)
	case ql.config.LogAllQueries && ql.shouldSample():
		ql.logger.Debug("query executed",
			zap.String("sql", truncateSQL(traceData.sql, 200)),
			zap.Duration("duration", duration),
			zap.String("command_tag", data.CommandTag.String()),
		)
	}
}

// sqlOperation returns the lowercased leading keyword of a statement.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(strings.TrimLeft(fields[0], "("))
}

func (ql *QueryLogger) shouldSample() bool {
	if ql.config.SampleRate >= 1.0 {
		return true
	}
	if ql.config.SampleRate <= 0 {
		return false
	}

	count := atomic.AddUint64(&ql.sample, 1)
	threshold := uint64(1.0 / ql.config.SampleRate)
	return count%threshold == 0
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}

// LogStats logs current query statistics.
func (ql *QueryLogger) LogStats() {
	total, slow, verySlow, failed, avgDuration := ql.stats.GetStats()
	slowest, slowestDuration := ql.stats.GetSlowestQuery()

	ql.logger.Info("query statistics",
		zap.Int64("total_queries", total),
		zap.Int64("slow_queries", slow),
		zap.Int64("very_slow_queries", verySlow),
		zap.Int64("failed_queries", failed),
		zap.Duration("avg_duration", avgDuration),
		zap.String("slowest_query", slowest),
		zap.Duration("slowest_duration", slowestDuration),
	)
}
