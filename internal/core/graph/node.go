// Package graph provides node definitions
package graph

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the variant of a canvas node
type Kind string

const (
	// KindDataSource is a participant's dataset
	KindDataSource Kind = "dataSource"
	// KindComputeTask is a PSI/PIR/MPC task
	KindComputeTask Kind = "computeTask"
	// KindLocalTask is a CONCAT task run by a single participant
	KindLocalTask Kind = "localTask"
	// KindModelNode represents a model bound to a task
	KindModelNode Kind = "modelNode"
	// KindComputeResource represents TEE hardware bound to a task
	KindComputeResource Kind = "computeResource"
	// KindOutputData represents a result delivered by a task
	KindOutputData Kind = "outputData"
)

// Kinds lists every node kind in canvas order
var Kinds = []Kind{
	KindDataSource,
	KindComputeTask,
	KindLocalTask,
	KindModelNode,
	KindComputeResource,
	KindOutputData,
}

// Valid reports whether k is a known node kind
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsTask reports whether nodes of this kind are schedulable tasks
func (k Kind) IsTask() bool {
	return k == KindComputeTask || k == KindLocalTask
}

// IsOwned reports whether nodes of this kind belong to a parent task
func (k Kind) IsOwned() bool {
	return k == KindModelNode || k == KindComputeResource || k == KindOutputData
}

// Position is the canvas location of a node. It never affects compilation.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Payload is the variant-specific configuration of a node.
// The set of implementations is closed: one struct per Kind.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// Node represents a vertex on the workflow canvas
// PRINCIPLES:
// - KISS: identity, position and one payload variant
// - SRP: Only responsible for node data
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Position Position `json:"position"`
	Payload  Payload  `json:"data"`
}

// NewNode creates a node whose kind is taken from the payload
func NewNode(id string, payload Payload) *Node {
	n := &Node{ID: id, Payload: payload}
	if payload != nil {
		n.Kind = payload.Kind()
	}
	return n
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNodeKind, n.Kind)
	}
	if n.Payload == nil {
		return ErrNilPayload
	}
	if n.Payload.Kind() != n.Kind {
		return fmt.Errorf("%w: node %s is %s, payload is %s", ErrKindMismatch, n.ID, n.Kind, n.Payload.Kind())
	}
	return nil
}

// IsTask reports whether the node is a compute or local task
func (n *Node) IsTask() bool {
	return n.Kind.IsTask()
}

// ParentTaskID returns the owning task of model, resource and output nodes
func (n *Node) ParentTaskID() string {
	switch p := n.Payload.(type) {
	case *ModelNodeData:
		return p.ParentTaskID
	case *ComputeResourceData:
		return p.ParentTaskID
	case *OutputDataData:
		return p.ParentTaskID
	}
	return ""
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Payload != nil {
		c.Payload = n.Payload.clone()
	}
	return &c
}

// NewPayload returns an empty payload for the given kind
func NewPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindDataSource:
		return &DataSourceData{}, nil
	case KindComputeTask:
		return &ComputeTaskData{}, nil
	case KindLocalTask:
		return &LocalTaskData{ComputeType: ComputeTypeConcat}, nil
	case KindModelNode:
		return &ModelNodeData{}, nil
	case KindComputeResource:
		return &ComputeResourceData{ResourceType: "TEE"}, nil
	case KindOutputData:
		return &OutputDataData{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNodeKind, kind)
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"type"`
	Position Position        `json:"position"`
	Payload  json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the payload according to the "type" discriminator
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := NewPayload(raw.Kind)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	if len(raw.Payload) > 0 && string(raw.Payload) != "null" {
		if err := json.Unmarshal(raw.Payload, payload); err != nil {
			return fmt.Errorf("node %s: decode %s payload: %w", raw.ID, raw.Kind, err)
		}
	}
	n.ID = raw.ID
	n.Kind = raw.Kind
	n.Position = raw.Position
	n.Payload = payload
	return nil
}
