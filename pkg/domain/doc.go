// Package domain defines the pipeline graph model shared by every layer.
//
// It contains:
//   - The node-type catalog: each type's fixed handles and field schema
//   - Node, Edge and the full GraphDocument used for save/load
//   - Pipeline, the snapshot submitted for DAG validation, and its result
//   - The error taxonomy and the change events emitted by graph stores
package domain
