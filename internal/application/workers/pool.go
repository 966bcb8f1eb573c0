package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/dagflow/pkg/ports"
	"go.uber.org/zap"
)

// JobProcessor runs one queued validation job
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Pool manages a pool of worker goroutines draining the validation queue
type Pool struct {
	size      int
	eventBus  ports.EventBus
	processor JobProcessor
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	health    *HealthMonitor

	jobs      chan string
	workers   []*worker
	processed atomic.Int64
	failed    atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	eventBus ports.EventBus,
	processor JobProcessor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:      size,
		eventBus:  eventBus,
		processor: processor,
		metrics:   metrics,
		logger:    logger,
		jobs:      make(chan string, size*4),
		workers:   make([]*worker, size),
		ctx:       ctx,
		cancel:    cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start subscribes to the validation queue and starts the workers
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	if err := p.eventBus.Subscribe(p.ctx, ports.TopicValidationQueue, p.enqueue); err != nil {
		p.cancel()
		p.wg.Wait()
		return fmt.Errorf("failed to subscribe to validation queue: %w", err)
	}

	p.health.Start(p.ctx)

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// enqueue hands a queued job to the workers. It blocks while every
// worker is busy and the buffer is full.
func (p *Pool) enqueue(ctx context.Context, event ports.Event) error {
	jobID, ok := event.Data["job_id"].(string)
	if !ok || jobID == "" {
		p.logger.Error("invalid job_id in event", zap.String("event_id", event.ID))
		return nil
	}

	select {
	case p.jobs <- jobID:
		p.metrics.SetQueueDepth(len(p.jobs))
		return nil
	case <-p.ctx.Done():
		return errors.New("worker pool stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of buffered jobs
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case jobID := <-w.pool.jobs:
			w.handleJob(ctx, jobID)
		}
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// handleJob processes one validation job
func (w *worker) handleJob(ctx context.Context, jobID string) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	w.pool.metrics.SetQueueDepth(len(w.pool.jobs))
	startTime := time.Now()

	if err := w.pool.processor.ProcessJob(ctx, jobID); err != nil {
		w.pool.logger.Error("validation job failed",
			zap.String("worker_id", w.id),
			zap.String("job_id", jobID),
			zap.Error(err))
		w.pool.failed.Add(1)
		return
	}
	w.pool.processed.Add(1)

	w.pool.logger.Debug("validation job processed",
		zap.String("worker_id", w.id),
		zap.String("job_id", jobID),
		zap.Duration("duration", time.Since(startTime)))
}
