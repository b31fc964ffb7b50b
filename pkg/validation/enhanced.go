// Package validation provides enhanced validation with go-playground/validator integration
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/model"
)

// Enhanced validator instance with custom validations
var (
	// Validate is the main validator instance
	Validate *validator.Validate

	semverPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(-[\w\.-]+)?(\+[\w\.-]+)?$`)
)

func init() {
	Validate = validator.New()

	// Register custom validation functions
	Validate.RegisterValidation("field_ref", validateFieldRef)
	Validate.RegisterValidation("join_type", validateJoinType)
	Validate.RegisterValidation("tech_path", validateTechPath)
	Validate.RegisterValidation("semver", validateSemVer)

	// Register tag name function to use JSON tags for field names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateWithPlayground validates using go-playground/validator
func ValidateWithPlayground(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator errors to our custom format
func formatValidationErrors(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	var out ValidationErrors
	for _, fieldError := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fieldPath(fieldError),
			Value:   fieldError.Value(),
			Message: getErrorMessage(fieldError),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "required_if":
		return fmt.Sprintf("field is required when %s", fe.Param())
	case "required_unless":
		return fmt.Sprintf("field is required unless %s", fe.Param())
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "field_ref":
		return "must reference a field as participant.dataset.column"
	case "join_type":
		return "must be INNER or CROSS"
	case "tech_path":
		return "must be software or tee"
	case "semver":
		return "must be a semantic version"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

// Custom validation functions for workflow-specific rules

// validateFieldRef validates participant.dataset.column references
func validateFieldRef(fl validator.FieldLevel) bool {
	_, err := model.ParseFieldRef(fl.Field().String())
	return err == nil
}

// validateJoinType validates join type values
func validateJoinType(fl validator.FieldLevel) bool {
	switch graph.JoinType(fl.Field().String()) {
	case graph.JoinInner, graph.JoinCross:
		return true
	}
	return false
}

// validateTechPath validates technology paths; empty means software
func validateTechPath(fl validator.FieldLevel) bool {
	switch graph.TechPath(fl.Field().String()) {
	case "", graph.TechPathSoftware, graph.TechPathTEE:
		return true
	}
	return false
}

// validateSemVer validates semantic version format
func validateSemVer(fl validator.FieldLevel) bool {
	return semverPattern.MatchString(fl.Field().String())
}

// structIssues validates s and records one issue per failing field
func structIssues(r *Result, s interface{}, code Code, sentinel error, nodeID, prefix string) {
	collectIssues(r, Validate.Struct(s), code, sentinel, nodeID, prefix)
}

// partialIssues is structIssues restricted to the named struct fields
func partialIssues(r *Result, s interface{}, fields []string, code Code, sentinel error, nodeID, prefix string) {
	collectIssues(r, Validate.StructPartial(s, fields...), code, sentinel, nodeID, prefix)
}

func collectIssues(r *Result, err error, code Code, sentinel error, nodeID, prefix string) {
	if err == nil {
		return
	}
	var fieldErrs ValidationErrors
	if !errors.As(formatValidationErrors(err), &fieldErrs) {
		r.Errorf(code, sentinel, nodeID, "%s: %v", prefix, err)
		return
	}
	for _, fe := range fieldErrs {
		r.Errorf(code, sentinel, nodeID, "%s: %s %s", prefix, fe.Field, fe.Message)
	}
}
