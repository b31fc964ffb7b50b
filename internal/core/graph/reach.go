package graph

import (
	"maps"
	"slices"
)

// Adjacency maps a node ID to its direct successors, in edge order.
// It is the single reachability structure shared by connection checks,
// structural validation and task scheduling.
type Adjacency map[string][]string

// Link adds a directed link, ignoring exact repeats
func (a Adjacency) Link(from, to string) {
	for _, v := range a[from] {
		if v == to {
			return
		}
	}
	a[from] = append(a[from], to)
}

// Clone returns an independent copy
func (a Adjacency) Clone() Adjacency {
	c := make(Adjacency, len(a))
	for k, v := range a {
		c[k] = append([]string(nil), v...)
	}
	return c
}

// BuildAdjacency returns the dependency links of a canvas: every edge,
// plus an implicit link from each task to the output nodes it owns.
// Model and resource nodes feed their task through ordinary edges and get
// no implicit link.
func BuildAdjacency(nodes []*Node, edges []*Edge) Adjacency {
	adj := make(Adjacency, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if p, ok := n.Payload.(*OutputDataData); ok && p.ParentTaskID != "" {
			adj.Link(p.ParentTaskID, n.ID)
		}
	}
	for _, e := range edges {
		if e == nil {
			continue
		}
		adj.Link(e.Source, e.Target)
	}
	return adj
}

// Reachable reports whether to can be reached from from by following
// one or more links.
func Reachable(adj Adjacency, from, to string) bool {
	visited := map[string]bool{from: true}
	queue := append([]string(nil), adj[from]...)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u == to {
			return true
		}
		if visited[u] {
			continue
		}
		visited[u] = true
		queue = append(queue, adj[u]...)
	}
	return false
}

// WouldCreateCycle reports whether linking source to target closes a cycle
// in the adjacency as it would be after the link is added.
func WouldCreateCycle(adj Adjacency, source, target string) bool {
	if source == target {
		return true
	}
	next := adj.Clone()
	next.Link(source, target)
	return Reachable(next, target, source)
}

// FindCycle returns one cycle as a closed path (first element repeated at
// the end), or nil when the adjacency is acyclic. Roots are visited in the
// given order, then any remaining keys, so results are deterministic for
// a fixed order.
func FindCycle(adj Adjacency, order []string) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int, len(adj))
	var stack []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range adj[u] {
			if color[v] == gray {
				// back-edge: the cycle is the stack suffix starting at v
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append([]string(nil), stack[i:]...), v)
						break
					}
				}
				return true
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for _, id := range order {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	for _, id := range slices.Sorted(maps.Keys(adj)) {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}

// HasCycle reports whether the adjacency contains any directed cycle
func HasCycle(adj Adjacency) bool {
	return FindCycle(adj, nil) != nil
}
