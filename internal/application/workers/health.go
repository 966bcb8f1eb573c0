package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor samples the pool periodically, publishes pool gauges and
// reports a queue that stopped draining.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu            sync.Mutex
	started       bool
	lastProcessed int64
	stalled       bool
}

// HealthStatus is a point-in-time view of the pool
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueueDepth     int       `json:"queue_depth"`
	JobsProcessed  int64     `json:"jobs_processed"`
	JobsFailed     int64     `json:"jobs_failed"`
	Stalled        bool      `json:"stalled"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a monitor for pool
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start samples the pool every interval until ctx is done. A non-positive
// interval disables sampling; GetStatus still works.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.interval <= 0 {
		return
	}
	h.started = true

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.checkHealth()
			}
		}
	}()
}

// checkHealth records pool gauges and flags a stall: jobs waiting, every
// worker busy, and nothing finished since the previous sample.
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)
	h.pool.metrics.SetQueueDepth(status.QueueDepth)

	done := status.JobsProcessed + status.JobsFailed

	h.mu.Lock()
	stalled := status.QueueDepth > 0 &&
		status.BusyWorkers == status.TotalWorkers &&
		done == h.lastProcessed
	h.lastProcessed = done
	h.stalled = stalled
	h.mu.Unlock()

	h.logger.Debug("worker pool sampled",
		zap.Int("busy", status.BusyWorkers),
		zap.Int("queue_depth", status.QueueDepth),
		zap.Int64("processed", status.JobsProcessed),
		zap.Int64("failed", status.JobsFailed))

	switch {
	case status.StoppedWorkers > 0:
		h.logger.Warn("worker pool has stopped workers",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	case stalled:
		h.logger.Warn("validation queue stalled",
			zap.Int("queue_depth", status.QueueDepth),
			zap.Duration("interval", h.interval))
	}
}

// GetStatus counts worker states and reads the pool's job counters
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{
		QueueDepth:    h.pool.QueueDepth(),
		JobsProcessed: h.pool.processed.Load(),
		JobsFailed:    h.pool.failed.Load(),
		Timestamp:     time.Now(),
	}

	for _, s := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch s {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}

	h.mu.Lock()
	status.Stalled = h.stalled
	h.mu.Unlock()

	status.Healthy = status.TotalWorkers > 0 && status.StoppedWorkers == 0 && !status.Stalled
	return status
}

// IsHealthy reports whether every worker is running and the queue drains
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
