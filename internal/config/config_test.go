package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, ":8000", cfg.GetHTTPAddr())
	assert.Equal(t, ":9090", cfg.GetGRPCAddr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.Events.Backend)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.ShutdownTimeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DAGFLOW_HTTP_PORT", "8081")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("STORAGE_JOB_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("WORKER_POOL_SIZE", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Storage.JobTTL)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 8, cfg.Workers.PoolSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"DAGFLOW_HTTP_PORT": "70000"}},
		{"unparseable port", map[string]string{"DAGFLOW_GRPC_PORT": "abc"}},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "s3"}},
		{"postgres events", map[string]string{"EVENTS_BACKEND": "postgres"}},
		{"postgres without dsn", map[string]string{"STORAGE_BACKEND": "postgres"}},
		{"no workers", map[string]string{"WORKER_POOL_SIZE": "0"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
