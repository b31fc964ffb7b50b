// Package draft defines saved, editable versions of a workflow canvas and
// the persistence interface their stores implement.
package draft

import (
	"time"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// Draft is a named, saved version of a workflow canvas
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for draft data structure
type Draft struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name"`
	Document   *graph.Document `json:"document"`
	Metadata   Metadata        `json:"metadata"`
	Timestamp  time.Time       `json:"timestamp"`
	Version    string          `json:"version"`
}

// Metadata contains additional information about a draft
type Metadata struct {
	Nodes     int      `json:"nodes"`
	Edges     int      `json:"edges"`
	Tasks     int      `json:"tasks"`
	Source    string   `json:"source,omitempty"`
	CreatedBy string   `json:"created_by,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// New captures a store snapshot as a draft. Counts in Metadata are taken
// from the snapshot; the caller fills ID when it has one.
func New(workflowID, name string, snap *graph.Snapshot) *Draft {
	doc := graph.NewDocument(snap)
	return &Draft{
		WorkflowID: workflowID,
		Name:       name,
		Document:   doc,
		Metadata: Metadata{
			Nodes: len(doc.Nodes),
			Edges: len(doc.Edges),
			Tasks: len(snap.Tasks()),
		},
		Timestamp: doc.Timestamp,
		Version:   doc.Version,
	}
}

// Validate ensures draft integrity
func (d *Draft) Validate() error {
	if d == nil || d.ID == "" {
		return ErrInvalidDraftID
	}
	if d.WorkflowID == "" {
		return ErrInvalidWorkflowID
	}
	if d.Document == nil {
		return ErrNilDocument
	}
	return nil
}

// HasTags reports whether the draft carries every tag in tags
func (d *Draft) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range d.Metadata.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Header returns a copy of the draft without its document
func (d *Draft) Header() *Draft {
	h := *d
	h.Document = nil
	h.Metadata.Tags = append([]string(nil), d.Metadata.Tags...)
	return &h
}
