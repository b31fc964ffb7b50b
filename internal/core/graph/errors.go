// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - defined once, used everywhere
var (
	// Node errors
	ErrNilNode         = errors.New("node cannot be nil")
	ErrInvalidNodeID   = errors.New("invalid node ID")
	ErrInvalidNodeKind = errors.New("invalid node kind")
	ErrNilPayload      = errors.New("node payload cannot be nil")
	ErrKindMismatch    = errors.New("payload kind does not match node kind")
	ErrNodeNotFound    = errors.New("node not found")
	ErrDuplicateNode   = errors.New("duplicate node ID")

	// Edge errors
	ErrNilEdge            = errors.New("edge cannot be nil")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
	ErrDuplicateEdge      = errors.New("duplicate edge")
	ErrSelfLoop           = errors.New("self-loops are not allowed")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrConnectionRejected = errors.New("connection rejected")

	// Graph errors
	ErrCyclicGraph = errors.New("cyclic dependency detected")

	// Document errors
	ErrInvalidDocument     = errors.New("invalid graph document")
	ErrUnsupportedDocument = errors.New("unsupported graph document version")
)
