package orchestrator

import (
	"fmt"

	"github.com/aescanero/dagflow/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// Validator checks pipeline snapshots for acyclicity. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	fields *validator.Validate
}

// NewValidator creates a new pipeline validator
func NewValidator() *Validator {
	v := validator.New()
	v.SetTagName("binding")
	return &Validator{fields: v}
}

// Validate reports the shape of p and whether it is a DAG. A snapshot whose
// edges reference nodes it does not contain is rejected as a whole.
func (v *Validator) Validate(p *domain.Pipeline) (*domain.ValidationResult, error) {
	g, err := v.build(p)
	if err != nil {
		return nil, err
	}

	order := g.kahn()
	return &domain.ValidationResult{
		NumNodes: len(p.Nodes),
		NumEdges: len(p.Edges),
		IsDAG:    len(order) == len(g.ids),
	}, nil
}

// TopologicalOrder returns node ids so that every edge points forward.
// Nodes are emitted in the order they become ready, starting with the
// sources in snapshot order, so the result is stable for a given snapshot.
func (v *Validator) TopologicalOrder(p *domain.Pipeline) ([]string, error) {
	g, err := v.build(p)
	if err != nil {
		return nil, err
	}

	order := g.kahn()
	if len(order) != len(g.ids) {
		return nil, domain.ErrCycleDetected
	}

	ids := make([]string, len(order))
	for i, idx := range order {
		ids[i] = g.ids[idx]
	}
	return ids, nil
}

// adjacency is the node-level graph of a snapshot. Nodes are indexed by
// their position in the snapshot; parallel edges collapse to one.
type adjacency struct {
	ids      []string
	out      [][]int
	inDegree []int
}

func (v *Validator) build(p *domain.Pipeline) (*adjacency, error) {
	if p == nil {
		return nil, domain.ErrNilPipeline
	}
	if err := v.fields.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	index := make(map[string]int, len(p.Nodes))
	g := &adjacency{
		ids:      make([]string, len(p.Nodes)),
		out:      make([][]int, len(p.Nodes)),
		inDegree: make([]int, len(p.Nodes)),
	}
	for i, n := range p.Nodes {
		if _, exists := index[n.ID]; exists {
			return nil, &domain.DuplicateIDError{ID: n.ID}
		}
		index[n.ID] = i
		g.ids[i] = n.ID
	}

	seen := make(map[[2]int]bool, len(p.Edges))
	for _, e := range p.Edges {
		from, ok := index[e.Source]
		if !ok {
			return nil, &domain.InvalidReferenceError{EdgeID: e.ID, NodeID: e.Source, Field: "source"}
		}
		to, ok := index[e.Target]
		if !ok {
			return nil, &domain.InvalidReferenceError{EdgeID: e.ID, NodeID: e.Target, Field: "target"}
		}

		pair := [2]int{from, to}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		g.out[from] = append(g.out[from], to)
		g.inDegree[to]++
	}

	return g, nil
}

// kahn consumes zero in-degree nodes until none remain. The returned order
// covers every node iff the graph is acyclic. A self-loop keeps its node's
// in-degree above zero, so it is always reported as a cycle.
func (g *adjacency) kahn() []int {
	inDegree := make([]int, len(g.inDegree))
	copy(inDegree, g.inDegree)

	queue := make([]int, 0, len(g.ids))
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(g.ids))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range g.out[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
