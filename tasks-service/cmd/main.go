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

	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	"taskboard/pkg/outbox"
	"taskboard/tasks-service/internal/config"
	"taskboard/tasks-service/internal/handler"
	"taskboard/tasks-service/internal/httpserver"
	"taskboard/tasks-service/internal/repository"
	"taskboard/tasks-service/internal/service"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting tasks-service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
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

	publisher := mq.NewPublisher(cfg.MQ.URL, log)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := publisher.Connect(connectCtx, 10); err != nil {
		log.Warn("MQ not reachable at startup, events stay in the outbox until it recovers", zap.Error(err))
	}
	cancelConnect()
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbConn, log)
	commentRepo := repository.NewCommentRepository(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn)

	taskService := service.NewTaskService(dbConn, taskRepo, log)
	commentService := service.NewCommentService(dbConn, taskRepo, commentRepo, log)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(dispatcherCtx)
	log.Info("Outbox dispatcher started",
		zap.Int("poll_interval_ms", cfg.Outbox.PollIntervalMS),
		zap.Int("batch_size", cfg.Outbox.BatchSize),
	)

	replayService := outbox.NewReplayService(outboxRepo, publisher)

	taskHandler := handler.NewTaskHandler(taskService, log)
	commentHandler := handler.NewCommentHandler(commentService, log)
	outboxHandler := handler.NewOutboxHandler(replayService, log)

	router := httpserver.NewRouter(taskHandler, commentHandler, outboxHandler, log, dbConn, publisher)
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
	log.Info("Shutting down tasks-service...")

	stopDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("tasks-service stopped")
}
