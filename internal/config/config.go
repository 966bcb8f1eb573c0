package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backends accepted for storage and the event bus
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the pipeline service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"DAGFLOW_HTTP_PORT" envDefault:"8000"`
	GRPCPort int    `env:"DAGFLOW_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage configuration
	Storage StorageConfig

	// Event bus configuration
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// PostgreSQL configuration
	Postgres PostgresConfig

	// Worker configuration
	Workers WorkerConfig

	// Editing session and validation limits
	Sessions SessionConfig

	// Timeouts
	Timeouts TimeoutConfig

	// CORS configuration
	CORS CORSConfig
}

// StorageConfig selects where saved pipelines and jobs live
type StorageConfig struct {
	Backend string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	JobTTL  time.Duration `env:"STORAGE_JOB_TTL" envDefault:"24h"`
}

// EventsConfig selects the event bus implementation
type EventsConfig struct {
	Backend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP" envDefault:"dagflow-workers"`
	ConsumerName  string `env:"EVENTS_CONSUMER_NAME"`
	StreamMaxLen  int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string `env:"DATABASE_URL"`
	CreateSchema bool   `env:"POSTGRES_CREATE_SCHEMA" envDefault:"true"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// SessionConfig holds editing session and batch limits
type SessionConfig struct {
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	BatchLimit int           `env:"VALIDATION_BATCH_LIMIT" envDefault:"4"`
	MaxBatch   int           `env:"VALIDATION_MAX_BATCH" envDefault:"100"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// CORSConfig holds the origins allowed to call the API from a browser
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate backends
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory, redis, or postgres)", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Storage.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Sessions.BatchLimit < 1 {
		return fmt.Errorf("validation batch limit must be at least 1")
	}
	if c.Sessions.MaxBatch < 1 {
		return fmt.Errorf("validation max batch must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
