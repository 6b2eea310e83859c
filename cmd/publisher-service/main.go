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
	"github.com/postwave/platform/pkg/channel"
	"github.com/postwave/platform/pkg/common/config"
	"github.com/postwave/platform/pkg/common/database"
	"github.com/postwave/platform/pkg/common/kafka"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/dispatch"
	"github.com/postwave/platform/pkg/notify"
	"github.com/postwave/platform/pkg/observability/metrics"
	"github.com/postwave/platform/pkg/poster"
	"github.com/postwave/platform/pkg/publication"
	"github.com/postwave/platform/pkg/server/middleware"
	"github.com/postwave/platform/pkg/socialnet"
)

func main() {
	logger.Init("publisher-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	catalog, err := socialnet.Load(cfg.NetworkCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to built-in network catalog")
	}

	channelRepo := channel.NewRepository(db)
	if err := channelRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate channel tables")
	}
	publicationRepo := publication.NewRepository(db)
	if err := publicationRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate publication tables")
	}

	producer := kafka.NewProducer(notify.Topic)
	defer producer.Close()

	gatewayClient := poster.NewClient(cfg.GatewayServiceURL, cfg.GatewayRequestTimeout)
	validator := channel.NewValidator(catalog)
	testCache := channel.NewTestCache(database.GetRedis(), cfg.ChannelTestIdempotencyTTL)
	channelService := channel.NewService(channelRepo, validator, gatewayClient, testCache)

	shutdown := dispatch.NewShutdownCoordinator()
	engine := dispatch.NewEngine(
		publicationRepo,
		channelRepo,
		validator,
		gatewayClient,
		notify.NewEmitter(producer, "publisher-service"),
		shutdown,
		catalog,
		dispatch.Config{
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
			PostTimeout:   cfg.PostProcessingTimeout,
		},
	)
	dispatchService := dispatch.NewService(engine, publicationRepo, publicationRepo)
	publicationService := publication.NewService(publicationRepo)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go dispatchService.RunScheduler(schedulerCtx, cfg.SchedulerPollInterval)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS, middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	channel.NewHandler(channelService).Register(api)
	publication.NewHandler(publicationService).Register(api)
	dispatch.NewHandler(dispatchService).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("publisher service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start publisher service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down publisher service...")
	// Flip the abort flag first so in-flight dispatches stop before their
	// next post instead of racing the server drain.
	shutdown.Begin()
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("publisher service forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("failed to close redis")
	}
	logger.Log.Info("publisher service stopped")
}
