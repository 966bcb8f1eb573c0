package domain

import "time"

// ChangeKind names a committed graph mutation
type ChangeKind string

const (
	ChangeNodeAdded       ChangeKind = "node.added"
	ChangeNodeRemoved     ChangeKind = "node.removed"
	ChangeNodeMoved       ChangeKind = "node.moved"
	ChangeNodeDataUpdated ChangeKind = "node.data_updated"
	ChangeEdgeAdded       ChangeKind = "edge.added"
	ChangeEdgeRemoved     ChangeKind = "edge.removed"
	ChangeGraphImported   ChangeKind = "graph.imported"
)

// ChangeEvent describes one committed mutation of a graph store.
// RemovedEdges lists the edges cascade-deleted with a node.
type ChangeEvent struct {
	Kind         ChangeKind `json:"kind"`
	Node         *Node      `json:"node,omitempty"`
	Edge         *Edge      `json:"edge,omitempty"`
	RemovedEdges []Edge     `json:"removed_edges,omitempty"`
	Version      uint64     `json:"version"`
	Timestamp    time.Time  `json:"timestamp"`
}

// EventType names an event published on the event bus
type EventType string

const (
	EventTypeSessionCreated     EventType = "session.created"
	EventTypeSessionClosed      EventType = "session.closed"
	EventTypeGraphChanged       EventType = "graph.changed"
	EventTypeValidationRequest  EventType = "validation.requested"
	EventTypeValidationComplete EventType = "validation.completed"
	EventTypeValidationRejected EventType = "validation.rejected"
)
