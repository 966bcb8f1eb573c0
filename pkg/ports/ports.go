// Package ports declares the interfaces adapters implement for the
// application layer.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
)

// Topics used on the event bus
const (
	TopicSessionEvents    = "session.events"
	TopicValidationQueue  = "validation.requests"
	TopicValidationEvents = "validation.events"
)

// Event is the envelope carried by the event bus. SessionID is empty for
// events that do not belong to an editing session.
type Event struct {
	ID        string                 `json:"id"`
	Type      domain.EventType       `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes an event delivered by the bus
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes events and delivers them to subscribers.
// A subscription ends when the context passed to Subscribe is cancelled.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// PipelineStorage persists saved pipelines and validation jobs
type PipelineStorage interface {
	SavePipeline(ctx context.Context, p *domain.SavedPipeline) error
	GetPipeline(ctx context.Context, id string) (*domain.SavedPipeline, error)
	DeletePipeline(ctx context.Context, id string) error
	ListPipelines(ctx context.Context) ([]string, error)

	SaveJob(ctx context.Context, job *domain.ValidationJob) error
	GetJob(ctx context.Context, id string) (*domain.ValidationJob, error)
}

// MetricsCollector records service metrics
type MetricsCollector interface {
	RecordValidation(outcome string, numNodes, numEdges int, duration time.Duration)
	RecordMutation(op string, err error)
	SetActiveSessions(count int)
	SetQueueDepth(depth int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// Validation outcomes reported to MetricsCollector
const (
	OutcomeDAG      = "dag"
	OutcomeCyclic   = "cyclic"
	OutcomeRejected = "rejected"
)
