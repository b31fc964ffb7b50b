package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/join"
	"github.com/flowgraph/mpcflow/internal/core/model"
)

var operatorPattern = regexp.MustCompile(`[+\-*/%=<>!&|^]`)

// ValidateTaskConfig checks the configuration of one task node.
// Non-task nodes produce an empty result.
func ValidateTaskConfig(node *graph.Node) Result {
	var r Result
	if node == nil || !node.IsTask() {
		return r
	}
	id := node.ID
	providers := graph.TaskInputs(node.Payload)

	r.Merge(validateProviders(id, providers))

	switch p := node.Payload.(type) {
	case *graph.ComputeTaskData:
		partialIssues(&r, p, []string{"TechPath"}, CodeInvalidTechPath, ErrInvalidTechPath, id, "task")
		r.Merge(validateModels(id, p, providers))
		if p.TechPath == graph.TechPathTEE && len(p.ComputeProviders) == 0 {
			r.Warnf(CodeMissingResource, id, "TEE task has no compute resource")
		}
		for i := range p.ComputeProviders {
			structIssues(&r, p.ComputeProviders[i], CodeInvalidResource, ErrInvalidResource, id, fmt.Sprintf("compute resource %d", i+1))
		}
	case *graph.LocalTaskData:
		if p.ParticipantID == "" {
			r.Errorf(CodeMissingOwner, ErrMissingOwner, id, "local task must name the executing participant")
		}
	}

	outputs := graph.TaskOutputs(node.Payload)
	if len(outputs) == 0 {
		r.Warnf(CodeNoOutput, id, "task has no output configured")
	}
	for i := range outputs {
		structIssues(&r, outputs[i], CodeInvalidOutput, ErrInvalidOutput, id, fmt.Sprintf("output %d", i+1))
	}
	return r
}

func validateProviders(id string, providers []graph.InputProvider) Result {
	var r Result
	if len(providers) == 0 {
		r.Errorf(CodeMissingInput, ErrMissingInput, id, "task needs at least one input provider")
		return r
	}
	for i, p := range providers {
		prefix := fmt.Sprintf("input provider %d", i+1)
		structIssues(&r, p, CodeInvalidProvider, ErrInvalidProvider, id, prefix)
		r.Merge(mappingSemantics(id, prefix, p.Fields))
	}

	switch {
	case len(providers) == 1:
		r.Warnf(CodeSingleProvider, id, "task has a single input provider, no join is formed")
	case !join.HasJoinField(providers):
		r.Errorf(CodeMissingJoinField, ErrMissingJoinField, id, "%d input providers need at least one join field", len(providers))
	case len(join.BuildConditions(providers)) == 0:
		r.Warnf(CodeJoinNotFormed, id, "join fields %s do not pair up across providers", strings.Join(join.FieldNames(providers), ", "))
	}
	return r
}

func validateModels(id string, p *graph.ComputeTaskData, providers []graph.InputProvider) Result {
	var r Result
	if p.ComputeType == graph.ComputeTypeMPC && len(p.Models) == 0 && strings.TrimSpace(p.Expression) == "" {
		r.Errorf(CodeMissingModel, ErrMissingModel, id, "MPC task needs a model or an expression")
	}
	if strings.TrimSpace(p.Expression) != "" {
		r.Merge(ValidateExpression(p.Expression).withNode(id))
	}

	for i, m := range p.Models {
		prefix := fmt.Sprintf("model %d", i+1)
		structIssues(&r, m, CodeInvalidModel, ErrInvalidModel, id, prefix)

		switch m.Type {
		case graph.ModelExpression:
			r.Merge(ValidateExpression(m.Expression).withNode(id))
		case graph.ModelGroupStat:
			for _, problem := range model.ValidateGroupBy(m.GroupBy) {
				r.Errorf(CodeInvalidModel, ErrInvalidModel, id, "%s: %s", prefix, problem)
			}
			if m.GroupBy != nil {
				for j, g := range m.GroupBy.GroupByFields {
					what := fmt.Sprintf("%s group field %d", prefix, j+1)
					structIssues(&r, g, CodeInvalidModel, ErrInvalidModel, id, what)
					// malformed references are already reported by the field_ref tag
					if _, err := model.ParseFieldRef(g.FieldID); err == nil {
						fieldRefIssue(&r, providers, g.FieldID, id, what)
					}
				}
				for _, st := range m.GroupBy.Statistics {
					if st.FieldID != "" {
						fieldRefIssue(&r, providers, st.FieldID, id, fmt.Sprintf("%s statistic %s", prefix, st.ID))
					}
				}
			}
		}

		for _, name := range model.MissingRequiredParams(m.Parameters) {
			r.Errorf(CodeInvalidModel, ErrInvalidModel, id, "%s: required parameter %s has no value", prefix, name)
		}
		for _, param := range m.Parameters {
			if param.BindingType != graph.BindingField || param.FieldRef == "" {
				continue
			}
			fieldRefIssue(&r, providers, param.FieldRef, id, fmt.Sprintf("%s: parameter %s", prefix, param.Name))
		}
	}
	return r
}

// fieldRefIssue reports a model field reference that names no input field
// of the task
func fieldRefIssue(r *Result, providers []graph.InputProvider, ref, id, what string) {
	if _, err := model.Resolve(providers, ref); err != nil {
		r.Errorf(CodeInvalidModel, fmt.Errorf("%w: %w", ErrInvalidModel, err), id, "%s: %v", what, err)
	}
}

// ValidateJoinConditions checks derived join conditions
func ValidateJoinConditions(conds []join.Condition) Result {
	var r Result
	if len(conds) == 0 {
		r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "at least one join condition is required")
		return r
	}
	for i, c := range conds {
		if len(c.Operands) < 2 {
			r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "join condition %d needs at least two operands", i+1)
		}
		for j, op := range c.Operands {
			switch {
			case op.ParticipantID == "":
				r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "join condition %d operand %d has no participant", i+1, j+1)
			case op.Dataset == "":
				r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "join condition %d operand %d has no dataset", i+1, j+1)
			case len(op.ColumnNames) == 0:
				r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "join condition %d operand %d has no column", i+1, j+1)
			}
		}
		if c.Type != graph.JoinInner && c.Type != graph.JoinCross {
			r.Errorf(CodeInvalidJoin, ErrInvalidJoin, "", "join condition %d has unsupported type %q", i+1, c.Type)
		}
	}
	return r
}

// ValidateJoinFields checks that providers declare something to join on
func ValidateJoinFields(providers []graph.InputProvider) Result {
	var r Result
	if len(providers) == 0 {
		r.Errorf(CodeMissingInput, ErrMissingInput, "", "at least one input provider is required")
		return r
	}
	if !join.HasJoinField(providers) {
		r.Errorf(CodeMissingJoinField, ErrMissingJoinField, "", "at least one join field is required")
	}
	return r
}

// ValidateFieldMappings checks the columns one provider contributes
func ValidateFieldMappings(fields []graph.FieldMapping) Result {
	var r Result
	if len(fields) == 0 {
		r.Errorf(CodeInvalidFieldMapping, ErrInvalidFieldMapping, "", "at least one field is required")
		return r
	}
	for i, f := range fields {
		structIssues(&r, f, CodeInvalidFieldMapping, ErrInvalidFieldMapping, "", fmt.Sprintf("field %d", i+1))
	}
	r.Merge(mappingSemantics("", "fields", fields))
	hasJoin := false
	for _, f := range fields {
		hasJoin = hasJoin || f.IsJoinField
	}
	if !hasJoin {
		r.Warnf(CodeNoJoinField, "", "no join field is set")
	}
	return r
}

// mappingSemantics holds the cross-field rules tags cannot express
func mappingSemantics(id, prefix string, fields []graph.FieldMapping) Result {
	var r Result
	aliases := make(map[string]bool)
	for _, f := range fields {
		if f.ColumnAlias != "" {
			if aliases[f.ColumnAlias] {
				r.Errorf(CodeInvalidFieldMapping, ErrInvalidFieldMapping, id, "%s: duplicate alias %s", prefix, f.ColumnAlias)
			}
			aliases[f.ColumnAlias] = true
		}
		if f.IsJoinField && f.JoinType == "" {
			r.Warnf(CodeJoinTypeUnset, id, "%s: join field %s has no join type, INNER is assumed", prefix, f.ColumnName)
		}
	}
	return r
}

// ValidateExpression checks an arithmetic or filter expression
func ValidateExpression(expr string) Result {
	var r Result
	expr = strings.TrimSpace(expr)
	if expr == "" {
		r.Errorf(CodeInvalidExpression, ErrInvalidExpression, "", "expression is empty")
		return r
	}

	depth := 0
	for _, ch := range expr {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			r.Errorf(CodeInvalidExpression, ErrInvalidExpression, "", "expression %q has an unmatched closing parenthesis", expr)
			return r
		}
	}
	if depth > 0 {
		r.Errorf(CodeInvalidExpression, ErrInvalidExpression, "", "expression %q has an unclosed parenthesis", expr)
		return r
	}

	if !operatorPattern.MatchString(expr) && !strings.Contains(expr, ".") {
		r.Warnf(CodeIncompleteExpression, "", "expression %q has no operator or field reference", expr)
	}
	return r
}

// ValidateExportConfig checks a whole canvas is ready for export.
// Task issues keep their node ID and get the task label as prefix.
func ValidateExportConfig(nodes []*graph.Node) Result {
	var r Result
	tasks := 0
	outputs := 0
	for _, n := range nodes {
		if n == nil || !n.IsTask() {
			continue
		}
		tasks++
		outputs += len(graph.TaskOutputs(n.Payload))
		res := ValidateTaskConfig(n)
		if label := taskLabel(n); label != "" {
			for i := range res.Errors {
				res.Errors[i].Message = label + ": " + res.Errors[i].Message
			}
			for i := range res.Warnings {
				res.Warnings[i].Message = label + ": " + res.Warnings[i].Message
			}
		}
		r.Merge(res)
	}
	if tasks == 0 {
		r.Errorf(CodeNoTasks, ErrNoTasks, "", "canvas has no task node")
		return r
	}
	if outputs == 0 {
		r.Warnf(CodeNoOutputAnywhere, "", "no task has an output configured")
	}
	return r
}

func taskLabel(n *graph.Node) string {
	switch p := n.Payload.(type) {
	case *graph.ComputeTaskData:
		return p.Label
	case *graph.LocalTaskData:
		return p.Label
	}
	return ""
}
