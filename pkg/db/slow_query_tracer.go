package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskboard/pkg/metrics"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	began time.Time
}

// SlowQueryTracer is a pgx query tracer that logs statements slower than the
// configured threshold and records query durations.
type SlowQueryTracer struct {
	logger    *zap.Logger
	threshold time.Duration
}

func NewSlowQueryTracer(logger *zap.Logger, threshold time.Duration) *SlowQueryTracer {
	return &SlowQueryTracer{logger: logger, threshold: threshold}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, began: time.Now()})
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	elapsed := time.Since(start.began)
	metrics.RecordDBQueryDuration(elapsed)

	if data.Err != nil {
		t.logger.Error("Query failed",
			zap.String("sql", start.sql),
			zap.Duration("elapsed", elapsed),
			zap.Error(data.Err),
		)
		return
	}

	if elapsed >= t.threshold {
		t.logger.Warn("Slow query",
			zap.String("sql", start.sql),
			zap.Duration("elapsed", elapsed),
		)
	}
}
