package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/checkstream/internal/adapter/api"
	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/adapter/repository/memory"
	"github.com/V4T54L/checkstream/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/checkstream/internal/adapter/repository/redis"
	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/pkg/config"
	"github.com/V4T54L/checkstream/internal/pkg/logger"
	"github.com/V4T54L/checkstream/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

// streamStore is what a stream backend has to provide.
type streamStore interface {
	domain.StreamRepository
	domain.StreamPublisher
	domain.StreamSubscriber
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewStreamMetrics(nil)

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: adminMux,
	}

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("could not reach postgres, check endpoints will fail until it is available", "error", err)
	}

	// --- Stream Backend ---
	var (
		store     streamStore
		adminRepo domain.StreamAdminRepository
	)
	switch cfg.StreamBackend {
	case config.BackendMemory:
		memRepo := memory.NewStreamRepository(logger, cfg.StreamMaxEvents, cfg.StreamTTL)
		store, adminRepo = memRepo, memRepo
		logger.Warn("using in-memory stream backend; events are lost on restart and not shared between instances")
	default:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, stream reads will be empty and writes will fail until it is available", "error", err)
		}
		store = redisrepo.NewStreamRepository(redisClient, logger, m, cfg.StreamMaxEvents, cfg.StreamTTL)
		adminRepo = redisrepo.NewAdminRepository(redisClient, logger)
	}

	// --- Initialize Use Cases ---
	streams := usecase.NewEventStreamUseCase(store, store, store, logger, m, cfg.PublishTimeout)
	checks := usecase.NewCheckUseCase(postgres.NewCheckRepository(db, logger), streams, logger, m)

	// --- Initialize Admin API ---
	adminUseCase := usecase.NewAdminStreamUseCase(adminRepo)
	adminMux.Handle("/", api.NewAdminRouter(adminUseCase, logger))

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Initialize API Server ---
	apiServer := newAPIServer(cfg.HTTPAddr, api.NewRouter(cfg, logger, m, streams, checks))

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr, "stream_backend", cfg.StreamBackend)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	// Let in-flight live publishes finish before the redis client closes.
	streams.Close()

	logger.Info("servers shut down gracefully")
}
