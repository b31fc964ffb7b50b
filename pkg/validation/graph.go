package validation

import (
	"fmt"
	"strings"

	coregraph "github.com/flowgraph/mpcflow/internal/core/graph"
)

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckCycles enables detection of directed cycles.
	CheckCycles bool
	// CheckConnections applies the connection rules to every edge.
	CheckConnections bool
}

// ValidateGraph performs structural validation on a canvas.
// It is intended for canvases loaded from external sources where in-method
// guards (e.g., AddNode/Connect) may have been bypassed.
func ValidateGraph(nodes []*coregraph.Node, edges []*coregraph.Edge, opts ...GraphValidationOptions) error {
	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}

	// Validate all nodes
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return coregraph.ErrNilNode
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: %s", coregraph.ErrDuplicateNode, n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	// Validate edges and endpoints
	var seen []*coregraph.Edge
	for _, e := range edges {
		if e == nil {
			return coregraph.ErrNilEdge
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("edge %s: %w: %s", e.ID, coregraph.ErrSourceNodeNotFound, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("edge %s: %w: %s", e.ID, coregraph.ErrTargetNodeNotFound, e.Target)
		}
		for _, prev := range seen {
			if prev.SameConnection(e) {
				return fmt.Errorf("edge %s: %w", e.ID, coregraph.ErrDuplicateEdge)
			}
		}
		if cfg.CheckConnections {
			if v := CheckConnection(e, nodes, seen); !v.OK && v.Reason != ReasonCycle {
				return fmt.Errorf("edge %s: %w", e.ID, v.Err())
			}
		}
		seen = append(seen, e)
	}

	// Optional cycle detection
	if cfg.CheckCycles {
		order := make([]string, 0, len(nodes))
		for _, n := range nodes {
			order = append(order, n.ID)
		}
		if cycle := coregraph.FindCycle(coregraph.BuildAdjacency(nodes, edges), order); cycle != nil {
			return fmt.Errorf("%w: %s", coregraph.ErrCyclicGraph, strings.Join(cycle, " -> "))
		}
	}

	return nil
}
