package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskboard/notification-service/internal/gateway"
	"taskboard/notification-service/internal/handler"
	"taskboard/pkg/metrics"
	"taskboard/pkg/mq"
)

func NewRouter(
	notificationHandler *handler.NotificationHandler,
	wsHandler *gateway.Handler,
	jwtSecret string,
	logger *zap.Logger,
	db *pgxpool.Pool,
	consumer *mq.Consumer,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		latency := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(503, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if consumer != nil && !consumer.IsConnected() {
			c.JSON(503, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", wsHandler.Serve)

	authed := r.Group("/notifications", handler.AuthMiddleware(jwtSecret))
	{
		authed.GET("", notificationHandler.List)
		authed.PATCH("/read-all", notificationHandler.MarkAllRead)
		authed.PATCH("/:id/read", notificationHandler.MarkRead)
		authed.DELETE("/all", notificationHandler.DeleteAll)
		authed.DELETE("/:id", notificationHandler.Delete)
	}

	return r
}
