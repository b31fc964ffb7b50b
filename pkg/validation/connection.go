package validation

import (
	"fmt"
	"slices"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// Reason explains why a connection was rejected
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSelfLoop       Reason = "self_loop"
	ReasonUnknownNode    Reason = "unknown_node"
	ReasonHandleRole     Reason = "handle_role"
	ReasonKindNotAllowed Reason = "kind_not_allowed"
	ReasonCycle          Reason = "cycle"
	ReasonDuplicate      Reason = "duplicate"
)

// Verdict is the outcome of a connection check
type Verdict struct {
	OK      bool   `json:"ok"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConnectionError reports a rejected connection. It matches
// graph.ErrConnectionRejected under errors.Is.
type ConnectionError struct {
	Reason  Reason
	Message string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s", graph.ErrConnectionRejected, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return graph.ErrConnectionRejected
}

// Err converts a rejection into an error; accepted verdicts return nil
func (v Verdict) Err() error {
	if v.OK {
		return nil
	}
	return &ConnectionError{Reason: v.Reason, Message: v.Message}
}

var accepted = Verdict{OK: true}

func reject(reason Reason, format string, args ...interface{}) Verdict {
	return Verdict{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// allowedTargets lists the node kinds each kind may connect to.
// Tasks never connect directly to another task; data flows through the
// output nodes they own.
var allowedTargets = map[graph.Kind][]graph.Kind{
	graph.KindDataSource:      {graph.KindComputeTask, graph.KindLocalTask},
	graph.KindComputeTask:     nil,
	graph.KindLocalTask:       nil,
	graph.KindModelNode:       {graph.KindComputeTask},
	graph.KindComputeResource: {graph.KindComputeTask},
	graph.KindOutputData:      {graph.KindComputeTask, graph.KindLocalTask},
}

// AllowedTargets returns the kinds a node of kind k may connect to
func AllowedTargets(k graph.Kind) []graph.Kind {
	return slices.Clone(allowedTargets[k])
}

// CheckConnection decides whether candidate may be added to the canvas
// described by nodes and edges. Rules are applied in order and the first
// failing rule decides the verdict.
func CheckConnection(candidate *graph.Edge, nodes []*graph.Node, edges []*graph.Edge) Verdict {
	if candidate == nil {
		return reject(ReasonUnknownNode, "connection is nil")
	}
	if candidate.Source == candidate.Target {
		return reject(ReasonSelfLoop, "node %s cannot connect to itself", candidate.Source)
	}

	var source, target *graph.Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		switch n.ID {
		case candidate.Source:
			source = n
		case candidate.Target:
			target = n
		}
	}
	if source == nil {
		return reject(ReasonUnknownNode, "source node %s does not exist", candidate.Source)
	}
	if target == nil {
		return reject(ReasonUnknownNode, "target node %s does not exist", candidate.Target)
	}

	if role := graph.RoleOf(candidate.SourceHandle); role != graph.RoleUnset && role != graph.RoleOutput {
		return reject(ReasonHandleRole, "handle %q of %s is not an output handle", candidate.SourceHandle, source.ID)
	}
	if role := graph.RoleOf(candidate.TargetHandle); role != graph.RoleUnset && role != graph.RoleInput {
		return reject(ReasonHandleRole, "handle %q of %s is not an input handle", candidate.TargetHandle, target.ID)
	}

	if !slices.Contains(allowedTargets[source.Kind], target.Kind) {
		return reject(ReasonKindNotAllowed, "%s cannot connect to %s", source.Kind, target.Kind)
	}

	if graph.WouldCreateCycle(graph.BuildAdjacency(nodes, edges), source.ID, target.ID) {
		return reject(ReasonCycle, "connecting %s to %s would create a cycle", source.ID, target.ID)
	}

	for _, e := range edges {
		if e != nil && e.SameConnection(candidate) {
			return reject(ReasonDuplicate, "%s is already connected to %s", source.ID, target.ID)
		}
	}
	return accepted
}

// IsValidConnection reports whether CheckConnection accepts candidate
func IsValidConnection(candidate *graph.Edge, nodes []*graph.Node, edges []*graph.Edge) bool {
	return CheckConnection(candidate, nodes, edges).OK
}

// CanAcceptMoreInputs reports whether nodeID has fewer than max incoming
// edges. A max of zero or less means unlimited.
func CanAcceptMoreInputs(nodeID string, edges []*graph.Edge, max int) bool {
	if max <= 0 {
		return true
	}
	n := 0
	for _, e := range edges {
		if e != nil && e.Target == nodeID {
			n++
		}
	}
	return n < max
}

// ConnectionPolicy returns the connection rules as a store check
func ConnectionPolicy() graph.ConnectionCheck {
	return func(candidate *graph.Edge, nodes []*graph.Node, edges []*graph.Edge) error {
		return CheckConnection(candidate, nodes, edges).Err()
	}
}
