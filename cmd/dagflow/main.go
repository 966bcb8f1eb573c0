package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dagflow/internal/application/orchestrator"
	"github.com/aescanero/dagflow/internal/application/workers"
	"github.com/aescanero/dagflow/internal/config"
	"github.com/aescanero/dagflow/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/dagflow/pkg/api/grpc"
	"github.com/aescanero/dagflow/pkg/api/http"
	"github.com/aescanero/dagflow/pkg/api/websocket"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting dagflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("events_backend", cfg.Events.Backend))

	ctx := context.Background()

	// Initialize adapters
	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize backends", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(nil)

	// Initialize application components
	validator := orchestrator.NewValidator()

	orchestratorMgr := orchestrator.NewManager(
		backends.eventBus,
		backends.storage,
		metricsCollector,
		validator,
		logger,
		orchestrator.Options{
			SessionTTL: cfg.Sessions.TTL,
			BatchLimit: cfg.Sessions.BatchLimit,
		},
	)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		backends.eventBus,
		orchestratorMgr,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:           cfg.HTTPPort,
		Orchestrator:   orchestratorMgr,
		Workers:        workerPool,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBatch:       cfg.Sessions.MaxBatch,
		Logger:         logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(backends.eventBus, orchestratorMgr, cfg.CORS.AllowedOrigins, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("dagflow started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	backends.close(logger)

	logger.Info("dagflow shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
