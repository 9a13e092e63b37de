package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewCorrelationID generates a correlation id for a new event chain.
func NewCorrelationID() string {
	return uuid.NewString()
}

// FromContext returns the correlation id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithContext stores a correlation id in ctx.
func WithContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, correlationID)
}

// Ensure returns ctx with a correlation id, generating one if absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithContext(ctx, id), id
}

// HeaderName is the HTTP header used to propagate the correlation id.
const HeaderName = "X-Correlation-ID"
