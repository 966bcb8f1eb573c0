package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/dagflow/internal/application/graphstore"
	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/aescanero/dagflow/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager coordinates editing sessions and pipeline validation
type Manager struct {
	eventBus  ports.EventBus
	storage   ports.PipelineStorage
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// Track open editing sessions
	sessions sync.Map // map[string]*Session
	count    atomic.Int64

	// Configuration
	sessionTTL     time.Duration
	batchLimit     int
	reaperInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Session is one interactive editing session with its own graph store
type Session struct {
	ID        string
	Store     *graphstore.Store
	CreatedAt time.Time

	lastActive  atomic.Int64
	unsubscribe func()
}

// touch records activity on the session
func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last access
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Options tunes a Manager. Zero values disable session expiry and use a
// batch concurrency of 4.
type Options struct {
	SessionTTL time.Duration
	BatchLimit int
}

// NewManager creates a new orchestrator manager
func NewManager(
	eventBus ports.EventBus,
	storage ports.PipelineStorage,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	opts Options,
) *Manager {
	if opts.BatchLimit < 1 {
		opts.BatchLimit = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		eventBus:       eventBus,
		storage:        storage,
		metrics:        metrics,
		validator:      validator,
		logger:         logger,
		sessionTTL:     opts.SessionTTL,
		batchLimit:     opts.BatchLimit,
		reaperInterval: time.Minute,
		cancel:         cancel,
	}

	if m.sessionTTL > 0 {
		if m.sessionTTL < m.reaperInterval {
			m.reaperInterval = m.sessionTTL
		}
		m.wg.Add(1)
		go m.reapSessions(ctx)
	}

	return m
}

// Validator returns the validator used by the manager
func (m *Manager) Validator() *Validator {
	return m.validator
}

// Validate runs the DAG check on a snapshot and records the outcome
func (m *Manager) Validate(ctx context.Context, p *domain.Pipeline) (*domain.ValidationResult, error) {
	start := time.Now()
	result, err := m.validator.Validate(p)
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordValidation(ports.OutcomeRejected, 0, 0, duration)
		m.logger.Warn("pipeline rejected", zap.Error(err))
		return nil, err
	}

	outcome := ports.OutcomeDAG
	if !result.IsDAG {
		outcome = ports.OutcomeCyclic
	}
	m.metrics.RecordValidation(outcome, result.NumNodes, result.NumEdges, duration)
	m.logger.Debug("pipeline validated",
		zap.Int("num_nodes", result.NumNodes),
		zap.Int("num_edges", result.NumEdges),
		zap.Bool("is_dag", result.IsDAG),
		zap.Duration("duration", duration))

	return result, nil
}

// BatchItem is the outcome of one pipeline in a batch
type BatchItem struct {
	Result *domain.ValidationResult
	Err    error
}

// ValidateBatch validates independent pipelines concurrently. A rejected
// pipeline does not affect the others.
func (m *Manager) ValidateBatch(ctx context.Context, pipelines []*domain.Pipeline) ([]BatchItem, error) {
	items := make([]BatchItem, len(pipelines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.batchLimit)
	for i, p := range pipelines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := m.Validate(gctx, p)
			items[i] = BatchItem{Result: result, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// SubmitAsync stores a pending validation job and queues it for the worker pool
func (m *Manager) SubmitAsync(ctx context.Context, p *domain.Pipeline) (*domain.ValidationJob, error) {
	if p == nil {
		return nil, domain.ErrNilPipeline
	}

	job := &domain.ValidationJob{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusPending,
		Pipeline:    p,
		SubmittedAt: time.Now(),
	}

	if err := m.storage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventTypeValidationRequest,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"job_id": job.ID},
	}
	if err := m.eventBus.Publish(ctx, ports.TopicValidationQueue, event); err != nil {
		m.logger.Error("failed to queue validation job",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	m.logger.Info("validation job submitted",
		zap.String("job_id", job.ID),
		zap.Int("num_nodes", len(p.Nodes)),
		zap.Int("num_edges", len(p.Edges)))

	return job, nil
}

// ProcessJob validates a queued job and stores its outcome. Processing a
// job that already finished is a no-op.
func (m *Manager) ProcessJob(ctx context.Context, jobID string) error {
	job, err := m.storage.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job.IsTerminal() {
		return nil
	}

	eventType := domain.EventTypeValidationComplete
	result, err := m.Validate(ctx, job.Pipeline)
	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = domain.JobStatusRejected
		job.Error = err.Error()
		eventType = domain.EventTypeValidationRejected
	} else {
		job.Status = domain.JobStatusCompleted
		job.Result = result
	}

	if err := m.storage.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	data := map[string]interface{}{"job_id": job.ID, "status": string(job.Status)}
	if job.Result != nil {
		data["is_dag"] = job.Result.IsDAG
	}
	m.publish(ctx, ports.TopicValidationEvents, "", eventType, data)

	return nil
}

// GetJob retrieves a validation job
func (m *Manager) GetJob(ctx context.Context, jobID string) (*domain.ValidationJob, error) {
	job, err := m.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// CreateSession opens an editing session. A non-empty pipelineID loads
// that saved pipeline into the new session's store.
func (m *Manager) CreateSession(ctx context.Context, pipelineID string) (*Session, error) {
	store := graphstore.NewStore(m.logger)

	if pipelineID != "" {
		saved, err := m.storage.GetPipeline(ctx, pipelineID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline: %w", err)
		}
		if err := store.Import(saved.Document); err != nil {
			return nil, fmt.Errorf("failed to import pipeline %s: %w", pipelineID, err)
		}
	}

	s := &Session{
		ID:        uuid.New().String(),
		Store:     store,
		CreatedAt: time.Now(),
	}
	s.touch()

	s.unsubscribe = store.Subscribe(graphstore.ObserverFunc(func(change domain.ChangeEvent) {
		m.publish(context.Background(), ports.TopicSessionEvents, s.ID, domain.EventTypeGraphChanged,
			map[string]interface{}{"change": change})
	}))

	m.sessions.Store(s.ID, s)
	m.metrics.SetActiveSessions(int(m.count.Add(1)))
	m.publish(ctx, ports.TopicSessionEvents, s.ID, domain.EventTypeSessionCreated, nil)

	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("pipeline_id", pipelineID))

	return s, nil
}

// Session returns an open session
func (m *Manager) Session(sessionID string) (*Session, error) {
	val, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	s := val.(*Session)
	s.touch()
	return s, nil
}

// Mutate runs fn against a session's store and records the operation
func (m *Manager) Mutate(sessionID, op string, fn func(*graphstore.Store) error) error {
	s, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	err = fn(s.Store)
	m.metrics.RecordMutation(op, err)
	return err
}

// CloseSession discards a session and its graph
func (m *Manager) CloseSession(ctx context.Context, sessionID string) error {
	val, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	m.release(ctx, val.(*Session))
	return nil
}

func (m *Manager) release(ctx context.Context, s *Session) {
	s.unsubscribe()
	m.metrics.SetActiveSessions(int(m.count.Add(-1)))
	m.publish(ctx, ports.TopicSessionEvents, s.ID, domain.EventTypeSessionClosed, nil)

	m.logger.Info("session closed", zap.String("session_id", s.ID))
}

// SubmitSession snapshots a session's graph and validates it
func (m *Manager) SubmitSession(ctx context.Context, sessionID string) (*domain.ValidationResult, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return m.Validate(ctx, s.Store.Snapshot())
}

// SaveSession persists a session's graph. An empty pipelineID creates a
// new saved pipeline; otherwise that pipeline is overwritten.
func (m *Manager) SaveSession(ctx context.Context, sessionID, pipelineID, name string) (*domain.SavedPipeline, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}

	if pipelineID == "" {
		pipelineID = uuid.New().String()
	}
	saved := &domain.SavedPipeline{
		ID:        pipelineID,
		Name:      name,
		Document:  s.Store.Export(),
		UpdatedAt: time.Now(),
	}

	if err := m.storage.SavePipeline(ctx, saved); err != nil {
		return nil, fmt.Errorf("failed to save pipeline: %w", err)
	}

	m.logger.Info("pipeline saved",
		zap.String("session_id", sessionID),
		zap.String("pipeline_id", pipelineID))

	return saved, nil
}

// GetPipeline retrieves a saved pipeline
func (m *Manager) GetPipeline(ctx context.Context, pipelineID string) (*domain.SavedPipeline, error) {
	return m.storage.GetPipeline(ctx, pipelineID)
}

// ListPipelines returns the ids of saved pipelines
func (m *Manager) ListPipelines(ctx context.Context) ([]string, error) {
	return m.storage.ListPipelines(ctx)
}

// DeletePipeline removes a saved pipeline
func (m *Manager) DeletePipeline(ctx context.Context, pipelineID string) error {
	return m.storage.DeletePipeline(ctx, pipelineID)
}

// publish sends an event and logs failures. Events are advisory, so a
// failed publish never fails the operation that produced it.
func (m *Manager) publish(ctx context.Context, topic, sessionID string, eventType domain.EventType, data map[string]interface{}) {
	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	}

	if err := m.eventBus.Publish(ctx, topic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("type", string(eventType)),
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// reapSessions closes sessions idle for longer than the session TTL
func (m *Manager) reapSessions(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireIdle(ctx, time.Now().Add(-m.sessionTTL))
		}
	}
}

// expireIdle closes every session last used before cutoff
func (m *Manager) expireIdle(ctx context.Context, cutoff time.Time) int {
	expired := 0
	m.sessions.Range(func(key, value interface{}) bool {
		s := value.(*Session)
		if s.LastActive().Before(cutoff) {
			if _, ok := m.sessions.LoadAndDelete(key); ok {
				m.release(ctx, s)
				expired++
			}
		}
		return true
	})

	if expired > 0 {
		m.logger.Info("expired idle sessions", zap.Int("count", expired))
	}
	return expired
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.New("shutdown timeout")
	}

	// Close all open sessions
	m.sessions.Range(func(key, value interface{}) bool {
		if _, ok := m.sessions.LoadAndDelete(key); ok {
			m.release(ctx, value.(*Session))
		}
		return true
	})

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}
