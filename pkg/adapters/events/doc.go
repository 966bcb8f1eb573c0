// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams, consumer groups for queue topics
//   - memory: In-process channels for single-instance use and tests
package events
