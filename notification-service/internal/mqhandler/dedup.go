package mqhandler

import (
	"context"

	contracts "taskboard/contracts/mq"
)

// Deduper suppresses duplicate processing of one event across at-least-once
// redeliveries.
type Deduper interface {
	Claim(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

// idempotencyKey picks the dedup key for an event. The event id is unique
// per event; the correlation id is only a fallback for producers that
// predate it, since one request chain can emit several events under the
// same correlation id.
func idempotencyKey(e contracts.Envelope) string {
	if e.EventID != "" {
		return e.EventID
	}
	return e.CorrelationID
}
