// Package validation checks workflow canvases before compilation:
// connection rules, task configuration and structural graph checks.
package validation

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Severity separates blocking problems from advice
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one diagnostic about a canvas. Err holds the sentinel the
// issue matches under errors.Is.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	NodeID   string   `json:"nodeId,omitempty"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

func (i Issue) Error() string {
	if i.NodeID != "" {
		return fmt.Sprintf("%s: %s", i.NodeID, i.Message)
	}
	return i.Message
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Issues is a list of blocking issues usable as a single error
type Issues []Issue

func (is Issues) Error() string {
	msgs := make([]string, len(is))
	for i, issue := range is {
		msgs[i] = issue.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes every issue to errors.Is and errors.As
func (is Issues) Unwrap() []error {
	errs := make([]error, len(is))
	for i, issue := range is {
		errs[i] = issue
	}
	return errs
}

// Result collects the errors and warnings of a validation run
type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Valid reports whether no blocking issue was found
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// HasError reports whether a blocking issue with code was recorded
func (r *Result) HasError(code Code) bool {
	for _, i := range r.Errors {
		if i.Code == code {
			return true
		}
	}
	return false
}

// Errorf records a blocking issue
func (r *Result) Errorf(code Code, sentinel error, nodeID, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Issue{
		Severity: SeverityError,
		Code:     code,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
		Err:      sentinel,
	})
}

// Warnf records an advisory issue
func (r *Result) Warnf(code Code, nodeID, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Issue{
		Severity: SeverityWarning,
		Code:     code,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Merge appends the issues of other
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Err returns the blocking issues as an error, or nil
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return Issues(r.Errors)
}

// withNode stamps nodeID on issues that have none
func (r Result) withNode(nodeID string) Result {
	for i := range r.Errors {
		if r.Errors[i].NodeID == "" {
			r.Errors[i].NodeID = nodeID
		}
	}
	for i := range r.Warnings {
		if r.Warnings[i].NodeID == "" {
			r.Warnings[i].NodeID = nodeID
		}
	}
	return r
}
