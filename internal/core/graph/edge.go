// Package graph provides edge definitions
package graph

import "strings"

// Edge represents a directed connection between two canvas nodes
// PRINCIPLES:
// - KISS: endpoints plus optional handles
// - SRP: Only responsible for connection data
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.Source == "" {
		return ErrSourceNodeNotFound
	}
	if e.Target == "" {
		return ErrTargetNodeNotFound
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	return nil
}

// SameConnection reports whether two edges share endpoints and handles.
// The edge ID takes no part in connection identity.
func (e *Edge) SameConnection(o *Edge) bool {
	return e.Source == o.Source &&
		e.Target == o.Target &&
		e.SourceHandle == o.SourceHandle &&
		e.TargetHandle == o.TargetHandle
}

// Touches reports whether the edge has id as an endpoint
func (e *Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// HandleRole classifies a port on a node
type HandleRole int

const (
	// RoleUnset means no handle was given
	RoleUnset HandleRole = iota
	// RoleOutput handles may only start an edge
	RoleOutput
	// RoleInput handles may only end an edge
	RoleInput
	// RoleUnknown handles match neither naming scheme
	RoleUnknown
)

// Default handle names used when a document omits them
const (
	DefaultSourceHandle = "output"
	DefaultTargetHandle = "input"
)

// RoleOf classifies a handle id. Plain names ("output", "left", "input",
// "right") and generated ids such as "<node>-output-0" are recognised.
func RoleOf(handle string) HandleRole {
	switch handle {
	case "":
		return RoleUnset
	case "output", "left", "source":
		return RoleOutput
	case "input", "right", "target":
		return RoleInput
	}
	switch {
	case hasPortSegment(handle, "output"), hasPortSegment(handle, "source"):
		return RoleOutput
	case hasPortSegment(handle, "input"), hasPortSegment(handle, "target"):
		return RoleInput
	}
	return RoleUnknown
}

func hasPortSegment(handle, role string) bool {
	return strings.Contains(handle, "-"+role+"-") || strings.HasSuffix(handle, "-"+role)
}

func (r HandleRole) String() string {
	switch r {
	case RoleUnset:
		return "unset"
	case RoleOutput:
		return "output"
	case RoleInput:
		return "input"
	}
	return "unknown"
}
