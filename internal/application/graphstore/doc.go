// Package graphstore holds the live, editable pipeline graph.
//
// A Store is the only write path to its graph. Every mutation is applied
// atomically under a lock and either commits fully or leaves the graph
// unchanged. Invariants kept at all times:
//   - Node ids are unique and generated ids are never reused
//   - No edge references a missing node (node removal cascades)
//   - Each target handle holds at most one incoming edge
//
// Observers registered with Subscribe receive a ChangeEvent after each
// committed mutation.
package graphstore
