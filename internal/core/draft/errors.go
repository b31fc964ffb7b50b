package draft

import "errors"

var (
	// Draft validation errors
	ErrInvalidDraftID    = errors.New("invalid draft ID")
	ErrInvalidWorkflowID = errors.New("invalid workflow ID")
	ErrNilDocument       = errors.New("draft document cannot be nil")
	ErrDraftNotFound     = errors.New("draft not found")

	// Filter validation errors
	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")

	ErrStoreFull = errors.New("draft store memory limit exceeded")
)
