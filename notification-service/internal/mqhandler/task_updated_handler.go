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

type TaskUpdatedHandler struct {
	fanout  *service.FanoutService
	deduper Deduper
	logger  *zap.Logger
}

func NewTaskUpdatedHandler(fanout *service.FanoutService, deduper Deduper, logger *zap.Logger) *TaskUpdatedHandler {
	return &TaskUpdatedHandler{fanout: fanout, deduper: deduper, logger: logger}
}

func (h *TaskUpdatedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var event contracts.TaskUpdatedPayload
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("malformed task.updated payload: %v: %w", err, util.ErrPermanent)
	}

	ctx = trace.WithContext(ctx, event.CorrelationID)

	key := idempotencyKey(event.Envelope)
	if key != "" && !h.deduper.Claim(ctx, "task.updated", key) {
		h.logger.Info("Duplicate task.updated delivery skipped",
			zap.String("event_id", event.EventID),
			zap.String("correlation_id", event.CorrelationID),
		)
		return nil
	}

	if err := h.fanout.HandleTaskUpdated(ctx, event); err != nil {
		if key != "" {
			h.deduper.Release(ctx, "task.updated", key)
		}
		return err
	}
	return nil
}
