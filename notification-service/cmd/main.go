package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	contracts "taskboard/contracts/mq"
	"taskboard/notification-service/internal/config"
	"taskboard/notification-service/internal/gateway"
	"taskboard/notification-service/internal/handler"
	"taskboard/notification-service/internal/httpserver"
	"taskboard/notification-service/internal/mqhandler"
	"taskboard/notification-service/internal/repository"
	"taskboard/notification-service/internal/service"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	pkgredis "taskboard/pkg/redis"
	"taskboard/pkg/util"
)

const dedupTTL = 24 * time.Hour

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notification-service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("port", cfg.Server.Port),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.InitSchema(initCtx, dbConn); err != nil {
		cancelInit()
		log.Fatal("Failed to init schema", zap.Error(err))
	}
	cancelInit()
	log.Info("Database schema ready")

	rdb := pkgredis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	hub := gateway.NewHub(log)
	backplane := gateway.NewBackplane(rdb, hub, log)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := backplane.Listen(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Backplane listener stopped", zap.Error(err))
		}
	}()

	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	deduper := util.NewDeduper(rdb, dedupTTL, log)
	fanout := service.NewFanoutService(notificationRepo, backplane, log)

	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		mq.NotificationsQueue,
		[]string{
			contracts.RoutingKeyTaskCreated,
			contracts.RoutingKeyTaskUpdated,
			contracts.RoutingKeyCommentCreated,
		},
		cfg.MQ.Prefetch,
		log,
	)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	consumer.Register(contracts.RoutingKeyTaskCreated, mqhandler.NewTaskCreatedHandler(fanout, deduper, log).Handle)
	consumer.Register(contracts.RoutingKeyTaskUpdated, mqhandler.NewTaskUpdatedHandler(fanout, deduper, log).Handle)
	consumer.Register(contracts.RoutingKeyCommentCreated, mqhandler.NewCommentCreatedHandler(fanout, deduper, log).Handle)

	go func() {
		log.Info("Starting fan-out consumer...")
		if err := consumer.StartConsuming(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("Consumer failed", zap.Error(err))
		}
	}()

	notificationHandler := handler.NewNotificationHandler(notificationRepo, log)
	wsHandler := gateway.NewHandler(hub, cfg.JWT.Secret, log)

	router := httpserver.NewRouter(notificationHandler, wsHandler, cfg.JWT.Secret, log, dbConn, consumer)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down notification-service...")

	stop()
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("notification-service stopped")
}
