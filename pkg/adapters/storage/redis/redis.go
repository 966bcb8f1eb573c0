package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pipelinePrefix = "dagflow:pipeline:"
	jobPrefix      = "dagflow:job:"
)

// Storage implements PipelineStorage using Redis. Saved pipelines never
// expire; validation jobs expire after jobTTL.
type Storage struct {
	client *redis.Client
	logger *zap.Logger
	jobTTL time.Duration
}

// NewStorage creates a new Redis storage
func NewStorage(client *redis.Client, jobTTL time.Duration, logger *zap.Logger) *Storage {
	return &Storage{
		client: client,
		logger: logger,
		jobTTL: jobTTL,
	}
}

// SavePipeline stores or replaces a saved pipeline
func (s *Storage) SavePipeline(ctx context.Context, p *domain.SavedPipeline) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	if err := s.client.Set(ctx, pipelinePrefix+p.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.Debug("pipeline saved",
		zap.String("pipeline_id", p.ID),
		zap.Int("nodes", len(p.Document.Nodes)))

	return nil
}

// GetPipeline retrieves a saved pipeline
func (s *Storage) GetPipeline(ctx context.Context, id string) (*domain.SavedPipeline, error) {
	data, err := s.client.Get(ctx, pipelinePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
		}
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	var p domain.SavedPipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}

	return &p, nil
}

// DeletePipeline removes a saved pipeline
func (s *Storage) DeletePipeline(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, pipelinePrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}

	s.logger.Debug("pipeline deleted", zap.String("pipeline_id", id))
	return nil
}

// ListPipelines returns all saved pipeline ids in sorted order
func (s *Storage) ListPipelines(ctx context.Context) ([]string, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pipelinePrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	return idsFromKeys(keys, pipelinePrefix), nil
}

// SaveJob stores or replaces a validation job
func (s *Storage) SaveJob(ctx context.Context, job *domain.ValidationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := s.client.Set(ctx, jobPrefix+job.ID, data, s.jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	s.logger.Debug("job saved",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)))

	return nil
}

// GetJob retrieves a validation job
func (s *Storage) GetJob(ctx context.Context, id string) (*domain.ValidationJob, error) {
	data, err := s.client.Get(ctx, jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.ValidationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// idsFromKeys strips prefix from each key and sorts the result
func idsFromKeys(keys []string, prefix string) []string {
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := strings.CutPrefix(key, prefix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
