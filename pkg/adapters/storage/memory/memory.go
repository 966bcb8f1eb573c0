package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/dagflow/pkg/domain"
)

// InMemoryStorage implements PipelineStorage using in-memory maps.
// Values are stored as JSON so callers never share memory with the store.
type InMemoryStorage struct {
	pipelines map[string][]byte
	jobs      map[string][]byte
	mu        sync.RWMutex
}

// NewInMemoryStorage creates a new in-memory storage
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		pipelines: make(map[string][]byte),
		jobs:      make(map[string][]byte),
	}
}

// SavePipeline stores or replaces a saved pipeline
func (s *InMemoryStorage) SavePipeline(ctx context.Context, p *domain.SavedPipeline) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pipelines[p.ID] = data
	return nil
}

// GetPipeline retrieves a saved pipeline
func (s *InMemoryStorage) GetPipeline(ctx context.Context, id string) (*domain.SavedPipeline, error) {
	s.mu.RLock()
	data, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}

	var p domain.SavedPipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}
	return &p, nil
}

// DeletePipeline removes a saved pipeline
func (s *InMemoryStorage) DeletePipeline(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}
	delete(s.pipelines, id)
	return nil
}

// ListPipelines returns all saved pipeline ids in sorted order
func (s *InMemoryStorage) ListPipelines(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.pipelines))
	for id := range s.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveJob stores or replaces a validation job
func (s *InMemoryStorage) SaveJob(ctx context.Context, job *domain.ValidationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = data
	return nil
}

// GetJob retrieves a validation job
func (s *InMemoryStorage) GetJob(ctx context.Context, id string) (*domain.ValidationJob, error) {
	s.mu.RLock()
	data, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	var job domain.ValidationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
