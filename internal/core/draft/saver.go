package draft

import (
	"context"
	"time"
)

// Saver persists drafts
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Callers depend on this interface, not on a database
type Saver interface {
	// Save persists a draft, replacing any draft with the same ID
	Save(ctx context.Context, d *Draft) error

	// Load retrieves a draft by ID
	Load(ctx context.Context, id string) (*Draft, error)

	// List returns draft headers matching the filter, newest first.
	// Documents are not loaded.
	List(ctx context.Context, filter Filter) ([]*Draft, error)

	// Delete removes a draft by ID
	Delete(ctx context.Context, id string) error
}

// Filter for draft queries
type Filter struct {
	WorkflowID string     `json:"workflow_id,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Match reports whether a draft passes the filter, ignoring paging
func (f *Filter) Match(d *Draft) bool {
	if f.WorkflowID != "" && d.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Since != nil && !d.Timestamp.After(*f.Since) {
		return false
	}
	if f.Before != nil && !d.Timestamp.Before(*f.Before) {
		return false
	}
	return d.HasTags(f.Tags)
}
