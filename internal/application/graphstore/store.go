package graphstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
	"go.uber.org/zap"
)

// ErrNotEmpty is returned when importing into a store that already holds nodes
var ErrNotEmpty = errors.New("graph store is not empty")

// Observer receives committed changes of a store
type Observer interface {
	OnChange(event domain.ChangeEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(event domain.ChangeEvent)

// OnChange calls f
func (f ObserverFunc) OnChange(event domain.ChangeEvent) { f(event) }

// Store holds one editable graph and is the only write path to it
type Store struct {
	mu      sync.RWMutex
	g       *graph
	version uint64

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextObs   uint64

	logger *zap.Logger
}

// NewStore creates an empty graph store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		g:         newGraph(),
		observers: make(map[uint64]Observer),
		logger:    logger,
	}
}

// Subscribe registers an observer. The returned function removes it.
func (s *Store) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = o

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// commit stamps an event with the next version. Caller holds mu.
func (s *Store) commit(event domain.ChangeEvent) domain.ChangeEvent {
	s.version++
	event.Version = s.version
	event.Timestamp = time.Now()
	return event
}

// notify delivers events outside the graph lock
func (s *Store) notify(events ...domain.ChangeEvent) {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.Unlock()

	for _, event := range events {
		for _, o := range observers {
			o.OnChange(event)
		}
	}
}

// GenerateNodeID reserves and returns the next "{type}-{n}" id
func (s *Store) GenerateNodeID(t domain.NodeType) (string, error) {
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownNodeType, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.nextID(t), nil
}

// AddNode inserts a node. An empty id is generated; a supplied id must be free.
// Fields missing from Data get the node type's defaults.
func (s *Store) AddNode(node domain.Node) (domain.Node, error) {
	s.mu.Lock()
	stored, err := s.g.insertNode(node)
	if err != nil {
		s.mu.Unlock()
		return domain.Node{}, err
	}
	out := stored.Clone()
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeNodeAdded, Node: &out})
	s.mu.Unlock()

	s.logger.Debug("node added",
		zap.String("node_id", out.ID),
		zap.String("type", string(out.Type)))
	s.notify(event)
	return out.Clone(), nil
}

// Connect links a source handle to a target handle. Connecting the same
// endpoints again is a no-op that returns the existing edge.
func (s *Store) Connect(source, sourceHandle, target, targetHandle string) (domain.Edge, error) {
	s.mu.Lock()
	edge, created, err := s.g.insertEdge(source, sourceHandle, target, targetHandle)
	if err != nil {
		s.mu.Unlock()
		return domain.Edge{}, err
	}
	out := *edge
	if !created {
		s.mu.Unlock()
		return out, nil
	}
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeEdgeAdded, Edge: &out})
	s.mu.Unlock()

	s.logger.Debug("edge added", zap.String("edge_id", out.ID))
	s.notify(event)
	return out, nil
}

// RemoveNode deletes a node and, in the same operation, every edge touching it
func (s *Store) RemoveNode(nodeID string) error {
	s.mu.Lock()
	node, removed, ok := s.g.deleteNode(nodeID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	out := node.Clone()
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeNodeRemoved, Node: &out, RemovedEdges: removed})
	s.mu.Unlock()

	s.logger.Debug("node removed",
		zap.String("node_id", nodeID),
		zap.Int("cascaded_edges", len(removed)))
	s.notify(event)
	return nil
}

// RemoveEdge deletes one edge
func (s *Store) RemoveEdge(edgeID string) error {
	s.mu.Lock()
	edge, ok := s.g.deleteEdge(edgeID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, edgeID)
	}
	out := *edge
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeEdgeRemoved, Edge: &out})
	s.mu.Unlock()

	s.logger.Debug("edge removed", zap.String("edge_id", edgeID))
	s.notify(event)
	return nil
}

// UpdateNodeData merges patch into the node's data. Unknown fields are kept.
func (s *Store) UpdateNodeData(nodeID string, patch map[string]interface{}) error {
	s.mu.Lock()
	node, ok := s.g.nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	if len(patch) == 0 {
		s.mu.Unlock()
		return nil
	}

	if node.Data == nil {
		node.Data = make(map[string]interface{}, len(patch))
	}
	for k, v := range domain.CopyData(patch) {
		node.Data[k] = v
	}
	out := node.Clone()
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeNodeDataUpdated, Node: &out})
	s.mu.Unlock()

	s.notify(event)
	return nil
}

// MoveNode sets the node's canvas position
func (s *Store) MoveNode(nodeID string, pos domain.Position) error {
	s.mu.Lock()
	node, ok := s.g.nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	node.Position = pos
	out := node.Clone()
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeNodeMoved, Node: &out})
	s.mu.Unlock()

	s.notify(event)
	return nil
}

// Node returns a copy of the node
func (s *Store) Node(nodeID string) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.g.nodes[nodeID]
	if !ok {
		return domain.Node{}, false
	}
	return node.Clone(), true
}

// Edge returns a copy of the edge
func (s *Store) Edge(edgeID string) (domain.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.g.edges[edgeID]
	if !ok {
		return domain.Edge{}, false
	}
	return *edge, true
}

// Len returns the node and edge counts
func (s *Store) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.g.nodes), len(s.g.edges)
}

// Version returns the number of committed mutations
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot serializes the graph for validation. Nodes and edges keep
// insertion order; the result shares no memory with the store.
func (s *Store) Snapshot() *domain.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &domain.Pipeline{
		Nodes: make([]domain.PipelineNode, 0, len(s.g.nodeOrder)),
		Edges: make([]domain.PipelineEdge, 0, len(s.g.edgeOrder)),
	}
	for _, id := range s.g.nodeOrder {
		n := s.g.nodes[id]
		p.Nodes = append(p.Nodes, domain.PipelineNode{
			ID:   n.ID,
			Type: string(n.Type),
			Data: domain.CopyData(n.Data),
		})
	}
	for _, id := range s.g.edgeOrder {
		e := s.g.edges[id]
		p.Edges = append(p.Edges, domain.PipelineEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	return p
}

// Export returns the full graph including positions and handles
func (s *Store) Export() domain.GraphDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := domain.GraphDocument{
		Nodes: make([]domain.Node, 0, len(s.g.nodeOrder)),
		Edges: make([]domain.Edge, 0, len(s.g.edgeOrder)),
	}
	for _, id := range s.g.nodeOrder {
		doc.Nodes = append(doc.Nodes, s.g.nodes[id].Clone())
	}
	for _, id := range s.g.edgeOrder {
		doc.Edges = append(doc.Edges, *s.g.edges[id])
	}
	return doc
}

// Import loads a document into an empty store. Node ids are taken as
// supplied and edge ids are re-derived. Either the whole document is
// loaded or the store is left unchanged.
func (s *Store) Import(doc domain.GraphDocument) error {
	staged := newGraph()
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return fmt.Errorf("import: node of type %s has no id", n.Type)
		}
		if _, err := staged.insertNode(n); err != nil {
			return fmt.Errorf("import node %s: %w", n.ID, err)
		}
	}
	for _, e := range doc.Edges {
		if _, _, err := staged.insertEdge(e.Source, e.SourceHandle, e.Target, e.TargetHandle); err != nil {
			return fmt.Errorf("import edge %s: %w", e.ID, err)
		}
	}

	s.mu.Lock()
	if len(s.g.nodes) > 0 {
		s.mu.Unlock()
		return ErrNotEmpty
	}
	// Counters must not fall behind ids already handed out by this store
	for t, n := range s.g.counters {
		if n > staged.counters[t] {
			staged.counters[t] = n
		}
	}
	s.g = staged
	event := s.commit(domain.ChangeEvent{Kind: domain.ChangeGraphImported})
	s.mu.Unlock()

	s.logger.Info("graph imported",
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("edges", len(doc.Edges)))
	s.notify(event)
	return nil
}
