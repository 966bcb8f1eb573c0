package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrEdgeNotFound     = errors.New("edge not found")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrCycleDetected    = errors.New("cycle detected, graph is not acyclic")
	ErrNilPipeline      = errors.New("pipeline is nil")
	ErrMalformed        = errors.New("malformed pipeline")
	ErrSessionNotFound  = errors.New("session not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrJobNotFound      = errors.New("validation job not found")
)

// DuplicateIDError reports a node id that is already taken
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate node id: %s", e.ID)
}

// InvalidHandleError reports a connection endpoint that does not exist,
// either because the node is absent or the node type has no such handle.
type InvalidHandleError struct {
	NodeID string
	Handle string
	Reason string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid handle %s on node %s: %s", e.Handle, e.NodeID, e.Reason)
}

// HandleRoleMismatchError reports a connection whose endpoints do not go
// from a source handle to a target handle.
type HandleRoleMismatchError struct {
	NodeID   string
	Handle   string
	Expected HandleRole
	Actual   HandleRole
}

func (e *HandleRoleMismatchError) Error() string {
	return fmt.Sprintf("handle %s on node %s is a %s handle, expected %s",
		e.Handle, e.NodeID, e.Actual, e.Expected)
}

// HandleOccupiedError reports a target handle that already has an incoming edge
type HandleOccupiedError struct {
	NodeID string
	Handle string
	EdgeID string
}

func (e *HandleOccupiedError) Error() string {
	return fmt.Sprintf("target handle %s on node %s already connected by %s",
		e.Handle, e.NodeID, e.EdgeID)
}

// InvalidReferenceError reports a snapshot edge that names a node absent
// from the snapshot's own node list.
type InvalidReferenceError struct {
	EdgeID string
	NodeID string
	Field  string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("edge %s references unknown %s node %s", e.EdgeID, e.Field, e.NodeID)
}

// EdgeConflictError reports a connection whose derived id is already held
// by an edge between different endpoints. Node ids containing "." or "-"
// can make two endpoint tuples derive the same id.
type EdgeConflictError struct {
	EdgeID   string
	Existing Edge
}

func (e *EdgeConflictError) Error() string {
	return fmt.Sprintf("edge id %s already names the edge %s.%s -> %s.%s",
		e.EdgeID, e.Existing.Source, e.Existing.SourceHandle, e.Existing.Target, e.Existing.TargetHandle)
}
