package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper suppresses duplicate event processing across at-least-once
// redeliveries. Callers key claims on a per-event id, never on anything
// shared between distinct events. Claims expire so the keyspace stays
// bounded.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// Claim atomically claims an event key. It returns true when this caller is
// the first to process the event. On Redis failure it returns true and logs:
// duplicate fan-out is preferable to dropped notifications.
func (d *Deduper) Claim(ctx context.Context, handler, eventKey string) bool {
	if eventKey == "" {
		return true
	}

	key := fmt.Sprintf("dedup:%s:%s", handler, eventKey)
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Dedup check failed, processing anyway",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return true
	}
	return ok
}

// Release frees a claim so a failed message can be reprocessed on redelivery.
func (d *Deduper) Release(ctx context.Context, handler, eventKey string) {
	if eventKey == "" {
		return
	}
	key := fmt.Sprintf("dedup:%s:%s", handler, eventKey)
	if err := d.rdb.Del(ctx, key).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to release dedup claim", zap.String("key", key), zap.Error(err))
	}
}
