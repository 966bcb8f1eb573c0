package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/dagflow/pkg/ports"
)

// ErrClosed is returned when publishing to a closed bus
var ErrClosed = errors.New("event bus closed")

const subscriptionBuffer = 256

// InMemoryEventBus implements EventBus using in-process channels.
// Each subscription receives events in publish order on its own goroutine.
type InMemoryEventBus struct {
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
}

type subscription struct {
	events chan ports.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]*subscription),
	}
}

// Publish delivers an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscription, 0, len(e.subscribers[topic]))
	for _, s := range e.subscribers[topic] {
		subs = append(subs, s)
	}
	e.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.events <- event:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	id := e.nextID
	e.nextID++
	s := &subscription{
		events: make(chan ports.Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	e.subscribers[topic][id] = s
	e.mu.Unlock()

	go func() {
		defer e.unsubscribe(topic, id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case event := <-s.events:
				// Handler errors are the subscriber's concern
				_ = handler(ctx, event)
			}
		}
	}()

	return nil
}

// Close closes the event bus and ends all subscriptions
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for _, subs := range e.subscribers {
		for _, s := range subs {
			s.stop()
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	return nil
}

// unsubscribe removes a subscription from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.subscribers[topic][id]; ok {
		s.stop()
		delete(e.subscribers[topic], id)
	}
}
