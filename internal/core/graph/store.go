package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// EventType names a store mutation
type EventType string

const (
	EventNodeAdded   EventType = "node_added"
	EventNodeUpdated EventType = "node_updated"
	EventNodeRemoved EventType = "node_removed"
	EventEdgeAdded   EventType = "edge_added"
	EventEdgeRemoved EventType = "edge_removed"
	EventReset       EventType = "reset"
)

// Event describes a completed mutation. Removed lists every node ID a
// cascade deleted; Updated lists tasks whose payload the cascade trimmed.
type Event struct {
	Type    EventType
	ID      string
	Removed []string
	Updated []string
}

// ConnectionCheck decides whether a candidate edge may join the canvas.
// It receives the store contents as they are before insertion and must not
// call back into the store.
type ConnectionCheck func(candidate *Edge, nodes []*Node, edges []*Edge) error

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l logr.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithConnectionCheck installs the rule set used by Connect
func WithConnectionCheck(c ConnectionCheck) Option {
	return func(s *Store) { s.check = c }
}

// WithEdgeIDs replaces the generator used for edges added without an ID
func WithEdgeIDs(fn func() string) Option {
	return func(s *Store) { s.newEdgeID = fn }
}

// Store owns the nodes and edges of one workflow canvas
// PRINCIPLES:
// - SRP: Only responsible for canvas state and its invariants
// - Thread-safe: one lock region per operation
// - No singleton: construct one per canvas and inject it
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	order     []string
	edges     []*Edge
	check     ConnectionCheck
	newEdgeID func() string
	log       logr.Logger

	obsMu     sync.Mutex
	observers map[uint64]func(Event)
	nextObs   uint64
}

// NewStore creates an empty canvas store
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:     make(map[string]*Node),
		newEdgeID: func() string { return "e-" + uuid.NewString() },
		log:       logr.Discard(),
		observers: make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called after every successful mutation.
// Callbacks run outside the store lock, on the mutating goroutine.
// The returned function unregisters fn.
func (s *Store) OnChange(fn func(Event)) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(ev Event) {
	s.obsMu.Lock()
	keys := make([]uint64, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.observers[k])
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// AddNode adds a copy of node to the canvas
func (s *Store) AddNode(node *Node) error {
	if node == nil {
		return ErrNilNode
	}
	if err := node.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, exists := s.nodes[node.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	s.nodes[node.ID] = node.Clone()
	s.order = append(s.order, node.ID)
	s.mu.Unlock()

	s.log.V(1).Info("node added", "node", node.ID, "kind", node.Kind)
	s.notify(Event{Type: EventNodeAdded, ID: node.ID})
	return nil
}

// Node returns a copy of the node with the given ID
func (s *Store) Node(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in insertion order
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order
func (s *Store) Edges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.edges)
}

// Len returns the number of nodes and edges
func (s *Store) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Snapshot returns an immutable deep copy for compilation
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSnapshot(s.nodesLocked(), s.edges)
}

// UpdateNode shallow-merges patch into the node's payload
// An unknown id or a payload of another kind is reported with
// ErrNodeNotFound or ErrKindMismatch and leaves the store untouched, so
// callers that treat such edits as no-ops may ignore the error.
func (s *Store) UpdateNode(id string, patch Payload) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	merged, err := MergePayload(n.Payload, patch)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	n.Payload = merged
	s.mu.Unlock()

	s.notify(Event{Type: EventNodeUpdated, ID: id})
	return nil
}

// SetPayload replaces the node's payload wholesale
// An unknown id or a payload of another kind is reported with
// ErrNodeNotFound or ErrKindMismatch and leaves the store untouched, so
// callers that treat such edits as no-ops may ignore the error.
func (s *Store) SetPayload(id string, payload Payload) error {
	if payload == nil {
		return ErrNilPayload
	}
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if payload.Kind() != n.Kind {
		s.mu.Unlock()
		return fmt.Errorf("%w: node %s is %s", ErrKindMismatch, id, n.Kind)
	}
	n.Payload = payload.clone()
	s.mu.Unlock()

	s.notify(Event{Type: EventNodeUpdated, ID: id})
	return nil
}

// MoveNode changes the canvas position of a node
// An unknown id is reported with ErrNodeNotFound and changes nothing.
func (s *Store) MoveNode(id string, pos Position) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.Position = pos
	s.mu.Unlock()

	s.notify(Event{Type: EventNodeUpdated, ID: id})
	return nil
}

// RemoveNode deletes a node and everything that depends on it:
// nodes owned by a removed task, edges touching any removed node, and
// task configuration entries pointing at a removed node.
// Removing an unknown ID is a no-op.
func (s *Store) RemoveNode(id string) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	removed := s.cascadeLocked(n)
	updated := s.detachLocked(removed)
	s.mu.Unlock()

	ids := removalOrder(removed, id)
	s.log.V(1).Info("node removed", "node", id, "cascade", len(ids)-1, "trimmed", len(updated))
	s.notify(Event{Type: EventNodeRemoved, ID: id, Removed: ids, Updated: updated})
}

// cascadeLocked collects the removal set of n and deletes those nodes
// and their edges. Caller holds s.mu.
func (s *Store) cascadeLocked(n *Node) map[string]bool {
	removed := map[string]bool{n.ID: true}
	if n.IsTask() {
		for _, other := range s.nodes {
			if other.ParentTaskID() == n.ID {
				removed[other.ID] = true
			}
		}
		for _, ref := range ownedRefs(n.Payload) {
			if owned, ok := s.nodes[ref]; ok && owned.Kind.IsOwned() {
				removed[ref] = true
			}
		}
	}
	for rid := range removed {
		delete(s.nodes, rid)
	}
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return removed[id] })
	s.edges = slices.DeleteFunc(s.edges, func(e *Edge) bool {
		return removed[e.Source] || removed[e.Target]
	})
	return removed
}

// detachLocked drops task configuration entries referring to removed
// nodes and returns the IDs of tasks it changed. Caller holds s.mu.
func (s *Store) detachLocked(removed map[string]bool) []string {
	var updated []string
	for _, id := range s.order {
		n := s.nodes[id]
		if !n.IsTask() {
			continue
		}
		trimmed, changed := trimTaskPayload(n.Payload, removed)
		if changed {
			n.Payload = trimmed
			updated = append(updated, id)
		}
	}
	return updated
}

func removalOrder(removed map[string]bool, first string) []string {
	out := []string{first}
	for rid := range removed {
		if rid != first {
			out = append(out, rid)
		}
	}
	slices.Sort(out[1:])
	return out
}

// AddEdge adds an edge after structural checks only: both endpoints exist,
// no self-loop and no duplicate connection. An empty ID is generated.
// Use Connect to apply the connection rules as well.
func (s *Store) AddEdge(edge *Edge) (*Edge, error) {
	if edge == nil {
		return nil, ErrNilEdge
	}
	s.mu.Lock()
	added, err := s.addEdgeLocked(edge)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notify(Event{Type: EventEdgeAdded, ID: added.ID})
	return added, nil
}

// Connect adds an edge only if the installed ConnectionCheck accepts it
func (s *Store) Connect(edge *Edge) (*Edge, error) {
	if edge == nil {
		return nil, ErrNilEdge
	}
	s.mu.Lock()
	if s.check != nil {
		if err := s.check(edge, s.nodesLocked(), copyEdges(s.edges)); err != nil {
			s.mu.Unlock()
			s.log.V(1).Info("connection rejected", "source", edge.Source, "target", edge.Target, "reason", err.Error())
			return nil, err
		}
	}
	added, err := s.addEdgeLocked(edge)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.notify(Event{Type: EventEdgeAdded, ID: added.ID})
	return added, nil
}

func (s *Store) addEdgeLocked(edge *Edge) (*Edge, error) {
	if err := edge.Validate(); err != nil {
		return nil, err
	}
	if _, ok := s.nodes[edge.Source]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNodeNotFound, edge.Source)
	}
	if _, ok := s.nodes[edge.Target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNodeNotFound, edge.Target)
	}
	for _, existing := range s.edges {
		if existing.SameConnection(edge) {
			return nil, ErrDuplicateEdge
		}
		if edge.ID != "" && existing.ID == edge.ID {
			return nil, fmt.Errorf("%w: edge ID %s in use", ErrDuplicateEdge, edge.ID)
		}
	}
	c := *edge
	if c.ID == "" {
		c.ID = s.newEdgeID()
	}
	s.edges = append(s.edges, &c)
	out := c
	return &out, nil
}

// RemoveEdge deletes the edge with the given ID and reports whether it existed
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	before := len(s.edges)
	s.edges = slices.DeleteFunc(s.edges, func(e *Edge) bool { return e.ID == id })
	removed := len(s.edges) != before
	s.mu.Unlock()

	if removed {
		s.notify(Event{Type: EventEdgeRemoved, ID: id})
	}
	return removed
}

// Load replaces the canvas with the given nodes and edges. Nothing is
// changed if any node or edge is structurally invalid.
func (s *Store) Load(nodes []*Node, edges []*Edge) error {
	next := NewStore()
	next.newEdgeID = s.newEdgeID
	for _, n := range nodes {
		if err := next.AddNode(n); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if e == nil {
			return ErrNilEdge
		}
		if _, err := next.AddEdge(e); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	s.mu.Lock()
	s.nodes, s.order, s.edges = next.nodes, next.order, next.edges
	s.mu.Unlock()

	s.log.Info("canvas loaded", "nodes", len(next.nodes), "edges", len(next.edges))
	s.notify(Event{Type: EventReset})
	return nil
}

// Clear removes every node and edge
func (s *Store) Clear() {
	s.mu.Lock()
	s.nodes = make(map[string]*Node)
	s.order = nil
	s.edges = nil
	s.mu.Unlock()

	s.notify(Event{Type: EventReset})
}

func (s *Store) nodesLocked() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

func copyEdges(edges []*Edge) []*Edge {
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		c := *e
		out[i] = &c
	}
	return out
}

// ownedRefs returns the canvas node IDs a task's configs point at
func ownedRefs(p Payload) []string {
	var refs []string
	if t, ok := p.(*ComputeTaskData); ok {
		for _, m := range t.Models {
			refs = append(refs, m.ModelNodeID)
		}
		for _, r := range t.ComputeProviders {
			refs = append(refs, r.ResourceNodeID)
		}
	}
	for _, o := range TaskOutputs(p) {
		refs = append(refs, o.OutputNodeID)
	}
	return slices.DeleteFunc(refs, func(r string) bool { return r == "" })
}

// trimTaskPayload removes input providers, models, resources and outputs
// whose canvas node was removed
func trimTaskPayload(p Payload, removed map[string]bool) (Payload, bool) {
	dropInput := func(ip InputProvider) bool { return removed[ip.SourceNodeID] }
	dropOutput := func(o OutputDataConfig) bool { return removed[o.OutputNodeID] }

	switch t := p.(type) {
	case *ComputeTaskData:
		c := t.clone().(*ComputeTaskData)
		c.InputProviders = slices.DeleteFunc(c.InputProviders, dropInput)
		c.Models = slices.DeleteFunc(c.Models, func(m ComputeModelConfig) bool { return removed[m.ModelNodeID] })
		c.ComputeProviders = slices.DeleteFunc(c.ComputeProviders, func(r ComputeResourceConfig) bool { return removed[r.ResourceNodeID] })
		c.Outputs = slices.DeleteFunc(c.Outputs, dropOutput)
		changed := len(c.InputProviders) != len(t.InputProviders) ||
			len(c.Models) != len(t.Models) ||
			len(c.ComputeProviders) != len(t.ComputeProviders) ||
			len(c.Outputs) != len(t.Outputs)
		return c, changed
	case *LocalTaskData:
		c := t.clone().(*LocalTaskData)
		c.InputProviders = slices.DeleteFunc(c.InputProviders, dropInput)
		c.Outputs = slices.DeleteFunc(c.Outputs, dropOutput)
		changed := len(c.InputProviders) != len(t.InputProviders) || len(c.Outputs) != len(t.Outputs)
		return c, changed
	}
	return p, false
}
