package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aescanero/dagflow/internal/config"
	eventsmemory "github.com/aescanero/dagflow/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/dagflow/pkg/adapters/events/redis"
	storagememory "github.com/aescanero/dagflow/pkg/adapters/storage/memory"
	"github.com/aescanero/dagflow/pkg/adapters/storage/postgres"
	storageredis "github.com/aescanero/dagflow/pkg/adapters/storage/redis"
	"github.com/aescanero/dagflow/pkg/ports"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backends holds the event bus and storage chosen by configuration along
// with the connections they own.
type backends struct {
	eventBus ports.EventBus
	storage  ports.PipelineStorage

	redisClient *goredis.Client
	pgPool      *pgxpool.Pool
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.UsesRedis() {
		b.redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		// Test Redis connection
		if err := b.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	switch cfg.Events.Backend {
	case config.BackendRedis:
		consumer := cfg.Events.ConsumerName
		if consumer == "" {
			consumer = fmt.Sprintf("dagflow-%d", os.Getpid())
		}
		bus, err := eventsredis.NewStreamsEventBus(
			b.redisClient,
			cfg.Events.ConsumerGroup,
			consumer,
			cfg.Events.StreamMaxLen,
			logger,
			ports.TopicValidationQueue,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		b.eventBus = bus
	default:
		b.eventBus = eventsmemory.NewInMemoryEventBus()
	}

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		b.storage = storageredis.NewStorage(b.redisClient, cfg.Storage.JobTTL, logger)
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.pgPool = pool

		store := postgres.New(pool)
		if cfg.Postgres.CreateSchema {
			if err := store.CreateSchema(ctx); err != nil {
				return nil, fmt.Errorf("failed to create schema: %w", err)
			}
		}
		b.storage = store
		logger.Info("connected to PostgreSQL")
	default:
		b.storage = storagememory.NewInMemoryStorage()
	}

	return b, nil
}

// close releases the event bus and any open connections
func (b *backends) close(logger *zap.Logger) {
	if err := b.eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}
	if b.pgPool != nil {
		b.pgPool.Close()
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}
}
