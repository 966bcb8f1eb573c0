// Package orchestrator implements the application logic around pipeline graphs.
//
// The orchestrator manager coordinates:
//   - Editing sessions, each backed by its own graph store
//   - Synchronous, batch and queued validation of pipeline snapshots
//   - Saving and loading pipelines through state storage
//   - Publishing session and validation events to the event bus
//
// The validator decides whether a snapshot is a DAG using Kahn's algorithm
// and rejects snapshots whose edges reference unknown nodes.
package orchestrator
