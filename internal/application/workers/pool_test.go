package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dagflow/pkg/adapters/events/memory"
	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/aescanero/dagflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	mu      sync.Mutex
	jobs    []string
	block   chan struct{}
	failure error
}

func (f *fakeProcessor) ProcessJob(ctx context.Context, jobID string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, jobID)
	return f.failure
}

func (f *fakeProcessor) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.jobs...)
}

type fakeMetrics struct {
	mu                  sync.Mutex
	idle, busy, stopped int
	queueDepth          int
}

func (m *fakeMetrics) RecordValidation(string, int, int, time.Duration) {}
func (m *fakeMetrics) RecordMutation(string, error)                     {}
func (m *fakeMetrics) SetActiveSessions(int)                            {}

func (m *fakeMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = depth
}

func (m *fakeMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle, m.busy, m.stopped = idle, busy, stopped
}

func queueJob(t *testing.T, bus ports.EventBus, data map[string]interface{}) {
	t.Helper()
	require.NoError(t, bus.Publish(context.Background(), ports.TopicValidationQueue, ports.Event{
		ID:   "evt",
		Type: domain.EventTypeValidationRequest,
		Data: data,
	}))
}

func TestPool_ProcessesQueuedJobs(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	defer bus.Close()

	proc := &fakeProcessor{}
	pool := NewPool(2, bus, proc, &fakeMetrics{}, zap.NewNop(), 0)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	queueJob(t, bus, map[string]interface{}{"job_id": "j1"})
	queueJob(t, bus, map[string]interface{}{"job_id": "j2"})
	queueJob(t, bus, map[string]interface{}{"job_id": "j3"})

	assert.Eventually(t, func() bool {
		return len(proc.processed()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"j1", "j2", "j3"}, proc.processed())
}

func TestPool_IgnoresMalformedEvents(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	defer bus.Close()

	proc := &fakeProcessor{}
	pool := NewPool(1, bus, proc, &fakeMetrics{}, zap.NewNop(), 0)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	queueJob(t, bus, map[string]interface{}{})
	queueJob(t, bus, map[string]interface{}{"job_id": 7})
	queueJob(t, bus, map[string]interface{}{"job_id": "ok"})

	assert.Eventually(t, func() bool {
		return len(proc.processed()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ok"}, proc.processed())
}

func TestPool_ProcessorErrorKeepsWorkerAlive(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	defer bus.Close()

	proc := &fakeProcessor{failure: errors.New("boom")}
	pool := NewPool(1, bus, proc, &fakeMetrics{}, zap.NewNop(), 0)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	queueJob(t, bus, map[string]interface{}{"job_id": "a"})
	queueJob(t, bus, map[string]interface{}{"job_id": "b"})

	assert.Eventually(t, func() bool {
		return pool.Health().GetStatus().JobsFailed == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), pool.Health().GetStatus().JobsProcessed)
	assert.True(t, pool.Health().IsHealthy())
}

func TestPool_StatusAndShutdown(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	defer bus.Close()

	proc := &fakeProcessor{block: make(chan struct{})}
	metrics := &fakeMetrics{}
	pool := NewPool(2, bus, proc, metrics, zap.NewNop(), 0)
	require.NoError(t, pool.Start())

	queueJob(t, bus, map[string]interface{}{"job_id": "slow"})

	assert.Eventually(t, func() bool {
		s := pool.Health().GetStatus()
		return s.BusyWorkers == 1 && s.IdleWorkers == 1
	}, time.Second, 10*time.Millisecond)

	pool.Health().checkHealth()
	metrics.mu.Lock()
	assert.Equal(t, 1, metrics.busy)
	assert.Equal(t, 1, metrics.idle)
	metrics.mu.Unlock()

	close(proc.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	for id, status := range pool.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, status, id)
	}
	assert.False(t, pool.Health().IsHealthy())
}

func TestHealth_DetectsStalledQueue(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	defer bus.Close()

	proc := &fakeProcessor{block: make(chan struct{})}
	pool := NewPool(1, bus, proc, &fakeMetrics{}, zap.NewNop(), 0)
	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	queueJob(t, bus, map[string]interface{}{"job_id": "first"})
	queueJob(t, bus, map[string]interface{}{"job_id": "second"})

	require.Eventually(t, func() bool {
		s := pool.Health().GetStatus()
		return s.BusyWorkers == 1 && s.QueueDepth == 1
	}, time.Second, 10*time.Millisecond)

	pool.Health().checkHealth()
	status := pool.Health().GetStatus()
	assert.True(t, status.Stalled)
	assert.False(t, status.Healthy)

	close(proc.block)
	require.Eventually(t, func() bool {
		return pool.Health().GetStatus().JobsProcessed == 2
	}, time.Second, 10*time.Millisecond)

	pool.Health().checkHealth()
	assert.True(t, pool.Health().IsHealthy())
}

func TestPool_StartFailsOnClosedBus(t *testing.T) {
	bus := memory.NewInMemoryEventBus()
	require.NoError(t, bus.Close())

	pool := NewPool(1, bus, &fakeProcessor{}, &fakeMetrics{}, zap.NewNop(), 0)
	assert.Error(t, pool.Start())
}
