// Package model holds the helpers used to bind computation models to the
// fields a task receives: field references, parameter checks and
// GROUP_STAT aggregation.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

var (
	// ErrInvalidFieldRef means a reference is not participant.dataset.column
	ErrInvalidFieldRef = errors.New("invalid field reference")
	// ErrUnknownField means a reference names no field of the task inputs
	ErrUnknownField = errors.New("field reference not found in task inputs")
)

// InputRefPrefix starts a reference of the form input.<sourceNodeId>.<column>,
// which names a field by the canvas node providing it
const InputRefPrefix = "input"

// FieldRef identifies one input column of a task
type FieldRef struct {
	ParticipantID string
	Dataset       string
	Column        string
}

// ParseFieldRef parses "participant.dataset.column". The column part may
// itself contain dots.
func ParseFieldRef(s string) (FieldRef, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrInvalidFieldRef, s)
	}
	return FieldRef{ParticipantID: parts[0], Dataset: parts[1], Column: parts[2]}, nil
}

func (r FieldRef) String() string {
	return r.ParticipantID + "." + r.Dataset + "." + r.Column
}

// ColumnOf returns the column part of a field ID, or the ID itself when
// it is not a field reference
func ColumnOf(fieldID string) string {
	if ref, err := ParseFieldRef(fieldID); err == nil {
		return ref.Column
	}
	return fieldID
}

// Field is an input column a model parameter can bind to
type Field struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`
	Dataset       string `json:"dataset"`
	ColumnName    string `json:"columnName"`
	ColumnAlias   string `json:"columnAlias,omitempty"`
	ColumnType    string `json:"columnType"`
	SourceNodeID  string `json:"sourceNodeId"`
}

// AvailableFields lists every column the providers contribute, in order
func AvailableFields(providers []graph.InputProvider) []Field {
	var out []Field
	for _, p := range providers {
		for _, f := range p.Fields {
			ref := FieldRef{ParticipantID: p.ParticipantID, Dataset: p.Dataset, Column: f.ColumnName}
			out = append(out, Field{
				ID:            ref.String(),
				ParticipantID: p.ParticipantID,
				Dataset:       p.Dataset,
				ColumnName:    f.ColumnName,
				ColumnAlias:   f.ColumnAlias,
				ColumnType:    f.ColumnType,
				SourceNodeID:  p.SourceNodeID,
			})
		}
	}
	return out
}

// Resolve finds the input field a reference points at. Both
// participant.dataset.column and input.<sourceNodeId>.<column> are
// accepted; the first form wins when both match.
func Resolve(providers []graph.InputProvider, ref string) (Field, error) {
	r, err := ParseFieldRef(ref)
	if err != nil {
		return Field{}, err
	}
	fields := AvailableFields(providers)
	for _, f := range fields {
		if f.ID == ref {
			return f, nil
		}
	}
	if r.ParticipantID == InputRefPrefix {
		for _, f := range fields {
			if f.SourceNodeID == r.Dataset && f.ColumnName == r.Column {
				return f, nil
			}
		}
	}
	return Field{}, fmt.Errorf("%w: %s", ErrUnknownField, ref)
}

// FieldGroup is the fields of one participant dataset
type FieldGroup struct {
	ParticipantID string
	Dataset       string
	Fields        []Field
}

// GroupFieldsByParticipant groups fields by participant and dataset in
// first-seen order
func GroupFieldsByParticipant(fields []Field) []FieldGroup {
	var groups []FieldGroup
	index := make(map[string]int)
	for _, f := range fields {
		key := f.ParticipantID + "." + f.Dataset
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, FieldGroup{ParticipantID: f.ParticipantID, Dataset: f.Dataset})
		}
		groups[i].Fields = append(groups[i].Fields, f)
	}
	return groups
}

// IsParameterConfigured reports whether a parameter has a value for its
// binding type
func IsParameterConfigured(p graph.ModelParameter) bool {
	if p.BindingType == graph.BindingField {
		return p.FieldRef != ""
	}
	return p.FixedValue != ""
}

// MissingRequiredParams returns the names of required parameters that
// have no value
func MissingRequiredParams(params []graph.ModelParameter) []string {
	var missing []string
	for _, p := range params {
		if p.Required && !IsParameterConfigured(p) {
			missing = append(missing, p.Name)
		}
	}
	return missing
}
