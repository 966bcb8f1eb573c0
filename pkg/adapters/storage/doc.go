// Package storage provides pipeline storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - postgres: PostgreSQL via pgx, saved pipelines as JSONB
//   - memory: In-memory for single-instance use and tests
package storage
