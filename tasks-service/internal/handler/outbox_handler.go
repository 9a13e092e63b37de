package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/pkg/outbox"
)

// OutboxHandler exposes an admin endpoint to requeue events that exhausted
// their retries.
type OutboxHandler struct {
	replay *outbox.ReplayService
	logger *zap.Logger
}

func NewOutboxHandler(replay *outbox.ReplayService, logger *zap.Logger) *OutboxHandler {
	return &OutboxHandler{replay: replay, logger: logger}
}

func (h *OutboxHandler) ReplayFailed(c *gin.Context) {
	limit := queryInt(c, "limit", 100)

	replayed, err := h.replay.ReplayFailedEvents(requestContext(c), limit)
	if err != nil {
		h.logger.Error("ReplayFailed: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay events"})
		return
	}

	h.logger.Info("Replayed failed outbox events", zap.Int("count", replayed))
	c.JSON(http.StatusOK, gin.H{"replayed": replayed})
}
