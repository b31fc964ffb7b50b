package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowgraph/mpcflow/pkg/validation"
)

var (
	ErrCyclicDependency       = errors.New("cyclic dependency between tasks")
	ErrUnsupportedComputeType = errors.New("unsupported compute type")
)

// CycleError names the tasks the scheduler could not order
type CycleError struct {
	// Tasks are the unordered tasks in insertion order
	Tasks []string
	// Path is one closed dependency cycle among them
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Tasks, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// Diagnostic is one compile-time error or warning
type Diagnostic = validation.Issue

// Diagnostics is the error returned when compilation hits structural
// problems. It unwraps to the sentinel of every problem.
type Diagnostics = validation.Issues
