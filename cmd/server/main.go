package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/api"
	"marketplace-service/internal/broker"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"
	"marketplace-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace service")

	tp, err := util.InitTracer("marketplace-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	var handlerOpts []api.HandlerOption
	var moderationOpts []service.ModerationOption

	var repo store.Repository
	switch cfg.Store.Backend {
	case "postgres":
		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		handlerOpts = append(handlerOpts, api.WithReadinessCheck("postgres", db.Ping))
		repo = db
		logger.Info("Database connected")
	case "memory":
		repo = store.NewMemoryStore()
		logger.Info("Using in-memory store")
	default:
		logger.Fatal("Unknown store backend", zap.String("backend", cfg.Store.Backend))
	}
	defer repo.Close()

	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		moderationOpts = append(moderationOpts,
			service.WithLocker(redisClient, cfg.Moderation.LockTTL),
			service.WithIdempotency(redisClient, cfg.Moderation.IdempotencyTTL),
			service.WithUnreadCache(redisClient),
		)
		handlerOpts = append(handlerOpts, api.WithReadinessCheck("redis", redisClient.Ping))
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher service.EventPublisher
	var eventPublisher *broker.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicListing)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		publisher = eventPublisher
		handlerOpts = append(handlerOpts, api.WithModerationRequester(eventPublisher))
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	listingService := service.NewListingService(repo, publisher)
	statsService := service.NewAdminStatsService(repo, repo, cfg.Moderation.RecentTransactionsLimit)
	moderationService := service.NewModerationService(repo, repo, statsService, publisher, moderationOpts...)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	purgeWorker := worker.NewPurgeWorker(listingService, cfg.Moderation.PurgeInterval, cfg.Moderation.PendingRetention)
	go func() {
		if err := purgeWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Purge worker error", zap.Error(err))
		}
	}()

	var moderationWorker *worker.ModerationWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicListing, cfg.Kafka.ConsumerGroup)
		moderationWorker = worker.NewModerationWorker(consumer, moderationService)
		go func() {
			if err := moderationWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Moderation worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(listingService, moderationService, statsService, handlerOpts...)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	purgeWorker.Stop()
	if moderationWorker != nil {
		moderationWorker.Stop()
	}

	logger.Info("Server exited")
}
