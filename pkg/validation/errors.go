package validation

import "errors"

// Task configuration errors
var (
	ErrMissingInput        = errors.New("task has no input provider")
	ErrInvalidProvider     = errors.New("invalid input provider")
	ErrMissingJoinField    = errors.New("task with several providers has no join field")
	ErrInvalidJoin         = errors.New("invalid join condition")
	ErrInvalidFieldMapping = errors.New("invalid field mapping")
	ErrMissingModel        = errors.New("MPC task needs a model or an expression")
	ErrInvalidModel        = errors.New("invalid model configuration")
	ErrInvalidExpression   = errors.New("invalid expression")
	ErrInvalidResource     = errors.New("invalid compute resource")
	ErrInvalidOutput       = errors.New("invalid output configuration")
	ErrMissingOwner        = errors.New("local task has no executing participant")
	ErrNoTasks             = errors.New("canvas has no task node")
	ErrInvalidGraph        = errors.New("invalid graph structure")
	ErrInvalidTechPath     = errors.New("unknown technology path")
)

// Code identifies a kind of diagnostic
type Code string

// Error codes
const (
	CodeMissingInput        Code = "missing_input"
	CodeInvalidProvider     Code = "invalid_provider"
	CodeMissingJoinField    Code = "missing_join_field"
	CodeInvalidJoin         Code = "invalid_join"
	CodeInvalidFieldMapping Code = "invalid_field_mapping"
	CodeMissingModel        Code = "missing_model"
	CodeInvalidModel        Code = "invalid_model"
	CodeInvalidExpression   Code = "invalid_expression"
	CodeInvalidResource     Code = "invalid_resource"
	CodeInvalidOutput       Code = "invalid_output"
	CodeMissingOwner        Code = "missing_owner"
	CodeNoTasks             Code = "no_tasks"
	CodeInvalidGraph        Code = "invalid_graph"
	CodeCyclicDependency    Code = "cyclic_dependency"
	CodeUnsupportedCompute  Code = "unsupported_compute_type"
	CodeInvalidTechPath     Code = "invalid_tech_path"
)

// Warning codes
const (
	CodeNoOutput             Code = "no_output"
	CodeNoOutputAnywhere     Code = "no_output_anywhere"
	CodeSingleProvider       Code = "single_provider"
	CodeJoinNotFormed        Code = "join_not_formed"
	CodeJoinTypeUnset        Code = "join_type_unset"
	CodeNoJoinField          Code = "no_join_field"
	CodeIncompleteExpression Code = "incomplete_expression"
	CodeMissingResource      Code = "missing_resource"
	CodeDeadEnd              Code = "dead_end"
)
