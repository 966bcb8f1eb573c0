package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dagflow/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamsEventBus implements EventBus using Redis Streams.
//
// Queue topics are read through a consumer group, so each event is handled
// by one consumer across all service instances. Every other topic is a
// broadcast: each subscription reads the stream independently from the
// moment it subscribed.
type StreamsEventBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	queueTopics   map[string]bool
	maxLen        int64
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client *redis.Client, consumerGroup, consumerName string, maxLen int64, logger *zap.Logger, queueTopics ...string) (*StreamsEventBus, error) {
	if consumerGroup == "" || consumerName == "" {
		return nil, errors.New("consumer group and consumer name are required")
	}

	queues := make(map[string]bool, len(queueTopics))
	for _, t := range queueTopics {
		queues[t] = true
	}

	return &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		queueTopics:   queues,
		maxLen:        maxLen,
	}, nil
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	streamKey := getStreamKey(topic)

	// Serialize event
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Add to stream
	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is cancelled
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	if !e.queueTopics[topic] {
		// Pin the start position now so events published after Subscribe
		// returns are never missed.
		startID, err := e.lastEntryID(ctx, streamKey)
		if err != nil {
			return err
		}
		go e.readBroadcast(ctx, streamKey, startID, handler)
		return nil
	}

	// Create consumer group if it doesn't exist
	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	// Start reading from stream
	go e.readGroup(ctx, streamKey, handler)

	return nil
}

// readGroup reads events from a stream through the consumer group
func (e *StreamsEventBus) readGroup(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    e.consumerGroup,
				Consumer: e.consumerName,
				Streams:  []string{streamKey, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if !e.retryable(ctx, streamKey, err) {
					return
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					if e.processMessage(ctx, streamKey, message, handler) {
						e.ack(ctx, streamKey, message.ID)
					}
				}
			}
		}
	}
}

// lastEntryID returns the id of the newest entry, or "0-0" for an empty
// or missing stream
func (e *StreamsEventBus) lastEntryID(ctx context.Context, streamKey string) (string, error) {
	entries, err := e.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(entries) == 0 {
		return "0-0", nil
	}
	return entries[0].ID, nil
}

// readBroadcast reads every event added to a stream after lastID
func (e *StreamsEventBus) readBroadcast(ctx context.Context, streamKey, lastID string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := e.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{streamKey, lastID},
				Count:   50,
				Block:   time.Second,
			}).Result()

			if err != nil {
				if !e.retryable(ctx, streamKey, err) {
					return
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					lastID = message.ID
					e.processMessage(ctx, streamKey, message, handler)
				}
			}
		}
	}
}

// retryable logs a read failure and reports whether reading should continue
func (e *StreamsEventBus) retryable(ctx context.Context, streamKey string, err error) bool {
	if errors.Is(err, redis.Nil) {
		// No new messages
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	e.logger.Error("failed to read from stream",
		zap.String("stream", streamKey),
		zap.Error(err))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Second):
		return true
	}
}

// processMessage decodes and handles one message. It reports whether the
// message is done with: handled, or malformed and never handleable.
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) bool {
	event, err := decodeMessage(message)
	if err != nil {
		e.logger.Error("invalid message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return true
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return false
	}
	return true
}

// ack acknowledges a message in the consumer group
func (e *StreamsEventBus) ack(ctx context.Context, streamKey, messageID string) {
	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, messageID).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// Close closes the event bus. The Redis client is closed by its owner.
func (e *StreamsEventBus) Close() error {
	return nil
}

func decodeMessage(message redis.XMessage) (ports.Event, error) {
	var event ports.Event

	data, ok := message.Values["data"].(string)
	if !ok {
		return event, errors.New("message has no data field")
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("dagflow:events:%s", topic)
}
