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

type TaskCreatedHandler struct {
	fanout  *service.FanoutService
	deduper Deduper
	logger  *zap.Logger
}

func NewTaskCreatedHandler(fanout *service.FanoutService, deduper Deduper, logger *zap.Logger) *TaskCreatedHandler {
	return &TaskCreatedHandler{fanout: fanout, deduper: deduper, logger: logger}
}

func (h *TaskCreatedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var event contracts.TaskCreatedPayload
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("malformed task.created payload: %v: %w", err, util.ErrPermanent)
	}

	ctx = trace.WithContext(ctx, event.CorrelationID)

	key := idempotencyKey(event.Envelope)
	if key != "" && !h.deduper.Claim(ctx, "task.created", key) {
		h.logger.Info("Duplicate task.created delivery skipped",
			zap.String("event_id", event.EventID),
			zap.String("correlation_id", event.CorrelationID),
		)
		return nil
	}

	if err := h.fanout.HandleTaskCreated(ctx, event); err != nil {
		if key != "" {
			h.deduper.Release(ctx, "task.created", key)
		}
		return err
	}
	return nil
}
