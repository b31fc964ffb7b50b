package graph

// Snapshot is an immutable deep copy of a canvas. Compilation always runs
// against a snapshot so it never observes a graph mutated mid-compile.
type Snapshot struct {
	nodes []*Node
	edges []*Edge
	index map[string]*Node
}

// NewSnapshot deep-copies nodes and edges. Nil entries are dropped.
func NewSnapshot(nodes []*Node, edges []*Edge) *Snapshot {
	s := &Snapshot{
		nodes: make([]*Node, 0, len(nodes)),
		edges: make([]*Edge, 0, len(edges)),
		index: make(map[string]*Node, len(nodes)),
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		c := n.Clone()
		s.nodes = append(s.nodes, c)
		s.index[c.ID] = c
	}
	for _, e := range edges {
		if e == nil {
			continue
		}
		c := *e
		s.edges = append(s.edges, &c)
	}
	return s
}

// Nodes returns nodes in insertion order. Callers must not mutate them.
func (s *Snapshot) Nodes() []*Node { return s.nodes }

// Edges returns edges in insertion order. Callers must not mutate them.
func (s *Snapshot) Edges() []*Edge { return s.edges }

// Node returns a node by ID
func (s *Snapshot) Node(id string) (*Node, bool) {
	n, ok := s.index[id]
	return n, ok
}

// Tasks returns compute and local task nodes in insertion order
func (s *Snapshot) Tasks() []*Node {
	var tasks []*Node
	for _, n := range s.nodes {
		if n.IsTask() {
			tasks = append(tasks, n)
		}
	}
	return tasks
}

// Adjacency returns the dependency links of the snapshot
func (s *Snapshot) Adjacency() Adjacency {
	return BuildAdjacency(s.nodes, s.edges)
}

// OwnerOf returns the task owning an output node. The node's own
// parent reference wins; otherwise the task whose output config points
// at the node is used.
func (s *Snapshot) OwnerOf(outputNodeID string) string {
	if n, ok := s.index[outputNodeID]; ok {
		if parent := n.ParentTaskID(); parent != "" {
			return parent
		}
	}
	for _, t := range s.nodes {
		for _, o := range TaskOutputs(t.Payload) {
			if o.OutputNodeID == outputNodeID {
				return t.ID
			}
		}
	}
	return ""
}

// Upstream returns the tasks a task depends on, in edge order without
// repeats. Edges from an output node resolve to the output's owning task.
func (s *Snapshot) Upstream(taskID string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, e := range s.edges {
		if e.Target != taskID {
			continue
		}
		dep := s.taskOf(e.Source)
		if dep == "" || dep == taskID || seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	return deps
}

// Consumers returns the tasks fed by an output node or directly by a task
func (s *Snapshot) Consumers(nodeID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range s.edges {
		if e.Source != nodeID || seen[e.Target] {
			continue
		}
		if n, ok := s.index[e.Target]; ok && n.IsTask() {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// Downstream returns the tasks that consume any result of a task
func (s *Snapshot) Downstream(taskID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range s.nodes {
		if !t.IsTask() || t.ID == taskID {
			continue
		}
		for _, dep := range s.Upstream(t.ID) {
			if dep == taskID && !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t.ID)
			}
		}
	}
	return out
}

func (s *Snapshot) taskOf(nodeID string) string {
	n, ok := s.index[nodeID]
	if !ok {
		return ""
	}
	switch {
	case n.IsTask():
		return n.ID
	case n.Kind == KindOutputData:
		return s.OwnerOf(n.ID)
	}
	return ""
}
