package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/notification-service/internal/repository"
	"taskboard/pkg/util"
)

const contextUserID = "userID"

// AuthMiddleware validates the bearer token and stores the caller's user id
// in the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextUserID, userID)
		c.Next()
	}
}

type NotificationHandler struct {
	repo   *repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(contextUserID)
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 10)
	unreadOnly := c.Query("unreadOnly") == "true"

	result, err := h.repo.ListForUser(c.Request.Context(), userID, page, size, unreadOnly)
	if err != nil {
		h.logger.Error("List notifications failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(contextUserID)
	notificationID := c.Param("id")

	if err := h.repo.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.logger.Error("MarkRead failed",
			zap.String("user_id", userID),
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(contextUserID)

	updated, err := h.repo.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("MarkAllRead failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetString(contextUserID)
	notificationID := c.Param("id")

	if err := h.repo.Delete(c.Request.Context(), userID, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.logger.Error("Delete notification failed",
			zap.String("user_id", userID),
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notification"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	userID := c.GetString(contextUserID)

	deleted, err := h.repo.DeleteAll(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("DeleteAll notifications failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
