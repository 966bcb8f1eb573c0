package domain

import (
	"fmt"
	"time"
)

// Position is the canvas coordinate of a node. It never affects validation.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a typed vertex of the editable graph
type Node struct {
	ID       string                 `json:"id"`
	Type     NodeType               `json:"type"`
	Position Position               `json:"position"`
	Data     map[string]interface{} `json:"data"`
}

// Edge connects a source handle of one node to a target handle of another
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// EdgeID derives the edge id from its endpoints. Connecting the same
// endpoints twice yields the same id.
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	return fmt.Sprintf("edge-%s.%s-%s.%s", source, sourceHandle, target, targetHandle)
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	n.Data = CopyData(n.Data)
	return n
}

// GraphDocument is the full-fidelity export of an editable graph, used to
// save and reload a pipeline.
type GraphDocument struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Pipeline is the immutable snapshot submitted for validation
type Pipeline struct {
	Nodes []PipelineNode `json:"nodes" yaml:"nodes" binding:"dive"`
	Edges []PipelineEdge `json:"edges" yaml:"edges" binding:"dive"`
}

// PipelineNode is a node as seen by the validator. Type and Data are
// carried through but never inspected.
type PipelineNode struct {
	ID   string                 `json:"id" yaml:"id" binding:"required"`
	Type string                 `json:"type" yaml:"type"`
	Data map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// PipelineEdge is an edge as seen by the validator
type PipelineEdge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source" binding:"required"`
	Target       string `json:"target" yaml:"target" binding:"required"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// ValidationResult is the shape report returned by the validator
type ValidationResult struct {
	NumNodes int  `json:"num_nodes"`
	NumEdges int  `json:"num_edges"`
	IsDAG    bool `json:"is_dag"`
}

// JobStatus is the lifecycle state of an asynchronous validation
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRejected  JobStatus = "rejected"
)

// ValidationJob tracks an asynchronous validation request
type ValidationJob struct {
	ID          string            `json:"job_id"`
	Status      JobStatus         `json:"status"`
	Pipeline    *Pipeline         `json:"pipeline,omitempty"`
	Result      *ValidationResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job has finished
func (j *ValidationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusRejected
}

// SavedPipeline is a named, persisted graph document
type SavedPipeline struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Document  GraphDocument `json:"document"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CopyData deep-copies a node data mapping
func CopyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CopyData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
