package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/notification-service/internal/service"
	"taskboard/pkg/trace"
	"taskboard/pkg/util"
)

type CommentCreatedHandler struct {
	fanout  *service.FanoutService
	deduper Deduper
	logger  *zap.Logger
}

func NewCommentCreatedHandler(fanout *service.FanoutService, deduper Deduper, logger *zap.Logger) *CommentCreatedHandler {
	return &CommentCreatedHandler{fanout: fanout, deduper: deduper, logger: logger}
}

func (h *CommentCreatedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var event contracts.CommentCreatedPayload
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("malformed comment.created payload: %v: %w", err, util.ErrPermanent)
	}

	ctx = trace.WithContext(ctx, event.CorrelationID)

	key := idempotencyKey(event.Envelope)
	if key != "" && !h.deduper.Claim(ctx, "comment.created", key) {
		h.logger.Info("Duplicate comment.created delivery skipped",
			zap.String("event_id", event.EventID),
			zap.String("correlation_id", event.CorrelationID),
		)
		return nil
	}

	if err := h.fanout.HandleCommentCreated(ctx, event); err != nil {
		if key != "" {
			h.deduper.Release(ctx, "comment.created", key)
		}
		return err
	}
	return nil
}
