package compiler

import (
	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// TopologicalSort orders the tasks of a snapshot so that every task comes
// after the tasks whose results it reads, using Kahn's algorithm with an
// insertion-ordered queue. Dependencies are direct task edges or
// task -> output -> task paths.
//
// On a cycle it returns the insertion order together with a *CycleError.
// Callers must treat that as a failure.
func TopologicalSort(snap *graph.Snapshot) ([]string, error) {
	tasks := snap.Tasks()
	order := make([]string, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	for i, t := range tasks {
		order[i] = t.ID
		inDegree[t.ID] = 0
	}

	deps := make(graph.Adjacency, len(tasks))
	for _, t := range tasks {
		for _, dep := range snap.Upstream(t.ID) {
			if _, ok := inDegree[dep]; !ok {
				continue
			}
			deps.Link(dep, t.ID)
			inDegree[t.ID]++
		}
	}

	var queue []string
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, next := range deps[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) == len(tasks) {
		// a task fed by its own output never shows up as a task dependency
		if path := graph.FindCycle(snap.Adjacency(), sorted); path != nil {
			var involved []string
			for _, id := range path[:len(path)-1] {
				if n, ok := snap.Node(id); ok && n.IsTask() {
					involved = append(involved, id)
				}
			}
			return order, &CycleError{Tasks: involved, Path: path}
		}
		return sorted, nil
	}

	var unordered []string
	for _, id := range order {
		if inDegree[id] > 0 {
			unordered = append(unordered, id)
		}
	}
	return order, &CycleError{
		Tasks: unordered,
		Path:  graph.FindCycle(deps, unordered),
	}
}
