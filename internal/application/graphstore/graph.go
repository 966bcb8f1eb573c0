package graphstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aescanero/dagflow/pkg/domain"
)

// handleKey addresses one handle of one node
type handleKey struct {
	nodeID string
	handle string
}

// graph is the unlocked graph state. Every method assumes the caller
// holds the store lock.
type graph struct {
	nodes     map[string]*domain.Node
	nodeOrder []string
	edges     map[string]*domain.Edge
	edgeOrder []string

	// incoming maps a target handle to the edge occupying it
	incoming map[handleKey]string

	// counters hold the last sequence handed out per node type
	counters map[domain.NodeType]int
}

func newGraph() *graph {
	return &graph{
		nodes:    make(map[string]*domain.Node),
		edges:    make(map[string]*domain.Edge),
		incoming: make(map[handleKey]string),
		counters: make(map[domain.NodeType]int),
	}
}

// nextID hands out the next "{type}-{n}" id that is not in use
func (g *graph) nextID(t domain.NodeType) string {
	for {
		g.counters[t]++
		id := fmt.Sprintf("%s-%d", t, g.counters[t])
		if _, taken := g.nodes[id]; !taken {
			return id
		}
	}
}

// sequenceOf returns the numeric suffix of a "{type}-{n}" id
func sequenceOf(t domain.NodeType, id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, string(t)+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (g *graph) insertNode(node domain.Node) (*domain.Node, error) {
	spec, ok := node.Type.Spec()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNodeType, node.Type)
	}

	if node.ID == "" {
		node.ID = g.nextID(node.Type)
	} else {
		if _, exists := g.nodes[node.ID]; exists {
			return nil, &domain.DuplicateIDError{ID: node.ID}
		}
		// Keep generated ids ahead of supplied ones so they are never reused
		if n, ok := sequenceOf(node.Type, node.ID); ok && n > g.counters[node.Type] {
			g.counters[node.Type] = n
		}
	}

	seq := node.ID
	if n, ok := sequenceOf(node.Type, node.ID); ok {
		seq = strconv.Itoa(n)
	}

	data := spec.DefaultData(seq)
	for k, v := range domain.CopyData(node.Data) {
		data[k] = v
	}
	node.Data = data

	stored := node
	g.nodes[node.ID] = &stored
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return &stored, nil
}

// endpoint resolves a handle and checks it carries the expected role
func (g *graph) endpoint(nodeID, handle string, role domain.HandleRole) error {
	node, ok := g.nodes[nodeID]
	if !ok {
		return &domain.InvalidHandleError{NodeID: nodeID, Handle: handle, Reason: "node does not exist"}
	}
	spec, _ := node.Type.Spec()
	h, ok := spec.Handle(handle)
	if !ok {
		return &domain.InvalidHandleError{
			NodeID: nodeID,
			Handle: handle,
			Reason: fmt.Sprintf("%s nodes have no such handle", node.Type),
		}
	}
	if h.Role != role {
		return &domain.HandleRoleMismatchError{NodeID: nodeID, Handle: handle, Expected: role, Actual: h.Role}
	}
	return nil
}

// insertEdge returns the stored edge and whether it was newly created
func (g *graph) insertEdge(source, sourceHandle, target, targetHandle string) (*domain.Edge, bool, error) {
	if err := g.endpoint(source, sourceHandle, domain.HandleRoleSource); err != nil {
		return nil, false, err
	}
	if err := g.endpoint(target, targetHandle, domain.HandleRoleTarget); err != nil {
		return nil, false, err
	}

	id := domain.EdgeID(source, sourceHandle, target, targetHandle)
	if existing, ok := g.edges[id]; ok {
		if existing.Source != source || existing.SourceHandle != sourceHandle ||
			existing.Target != target || existing.TargetHandle != targetHandle {
			return nil, false, &domain.EdgeConflictError{EdgeID: id, Existing: *existing}
		}
		return existing, false, nil
	}

	key := handleKey{nodeID: target, handle: targetHandle}
	if occupant, ok := g.incoming[key]; ok {
		return nil, false, &domain.HandleOccupiedError{NodeID: target, Handle: targetHandle, EdgeID: occupant}
	}

	edge := &domain.Edge{
		ID:           id,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
	g.edges[id] = edge
	g.edgeOrder = append(g.edgeOrder, id)
	g.incoming[key] = id
	return edge, true, nil
}

func (g *graph) deleteEdge(id string) (*domain.Edge, bool) {
	edge, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	g.dropEdge(edge)
	g.edgeOrder = without(g.edgeOrder, id)
	return edge, true
}

// dropEdge removes an edge from the lookup maps but not from edgeOrder
func (g *graph) dropEdge(edge *domain.Edge) {
	delete(g.edges, edge.ID)
	delete(g.incoming, handleKey{nodeID: edge.Target, handle: edge.TargetHandle})
}

// deleteNode removes the node together with every edge touching it.
// edgeOrder is filtered in a single pass.
func (g *graph) deleteNode(id string) (*domain.Node, []domain.Edge, bool) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, nil, false
	}

	var removed []domain.Edge
	kept := g.edgeOrder[:0]
	for _, edgeID := range g.edgeOrder {
		edge := g.edges[edgeID]
		if edge.Source == id || edge.Target == id {
			g.dropEdge(edge)
			removed = append(removed, *edge)
			continue
		}
		kept = append(kept, edgeID)
	}
	clear(g.edgeOrder[len(kept):])
	g.edgeOrder = kept

	delete(g.nodes, id)
	g.nodeOrder = without(g.nodeOrder, id)
	return node, removed, true
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
