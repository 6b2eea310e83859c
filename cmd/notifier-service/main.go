package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/postwave/platform/pkg/common/config"
	"github.com/postwave/platform/pkg/common/database"
	"github.com/postwave/platform/pkg/common/kafka"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/notify"
	"github.com/postwave/platform/pkg/server/middleware"
)

func main() {
	logger.Init("notifier-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := notify.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate notification tables")
	}
	service := notify.NewService(repo)

	consumer := kafka.NewConsumer(notify.Topic, "notifier-service")
	consumeCtx, stopConsumer := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Consume(consumeCtx, service.HandleEvent); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	notify.NewHandler(repo).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("notifier service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start notifier service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down notifier service...")
	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Error("failed to close consumer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("notifier service forced to shutdown")
	}
	logger.Log.Info("notifier service stopped")
}
