package logger

import (
	"context"

	"go.uber.org/zap"

	"taskboard/pkg/trace"
)

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// WithCorrelation returns the logger annotated with the correlation id from
// ctx, if one is present.
func WithCorrelation(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return logger.With(zap.String("correlation_id", id))
	}
	return logger
}
