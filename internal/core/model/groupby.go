package model

import (
	"fmt"
	"strings"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// Aggregate functions accepted by GROUP_STAT
const (
	FuncSum   = "SUM"
	FuncAvg   = "AVG"
	FuncCount = "COUNT"
	FuncMax   = "MAX"
	FuncMin   = "MIN"
)

// ResultType returns the column type an aggregate produces
func ResultType(function string) string {
	switch function {
	case FuncSum, FuncAvg:
		return "DOUBLE"
	case FuncCount:
		return "BIGINT"
	}
	return "VARCHAR"
}

// GroupByOutputFields returns the result columns of a GROUP_STAT model:
// grouping columns first, then one column per statistic
func GroupByOutputFields(cfg *graph.GroupByConfig) []graph.OutputField {
	if cfg == nil {
		return nil
	}
	var out []graph.OutputField
	for _, f := range cfg.GroupByFields {
		name := groupName(f)
		out = append(out, graph.OutputField{Source: graph.OutputFromModel, ColumnName: name, ColumnAlias: name, ColumnType: f.FieldType})
	}
	for _, s := range cfg.Statistics {
		out = append(out, graph.OutputField{Source: graph.OutputFromModel, ColumnName: s.ResultAlias, ColumnAlias: s.ResultAlias, ColumnType: ResultType(s.FunctionType)})
	}
	return out
}

// GroupBySQL renders a SQL preview of a GROUP_STAT model
func GroupBySQL(cfg *graph.GroupByConfig) string {
	if cfg == nil || (len(cfg.GroupByFields) == 0 && len(cfg.Statistics) == 0) {
		return ""
	}
	var groups, items []string
	for _, f := range cfg.GroupByFields {
		groups = append(groups, groupName(f))
		items = append(items, groupName(f))
	}
	for _, s := range cfg.Statistics {
		items = append(items, fmt.Sprintf("%s(%s) AS %s", s.FunctionType, ColumnOf(s.FieldID), s.ResultAlias))
	}

	var b strings.Builder
	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(items, ",\n  "))
	b.WriteString("\nFROM source_table")
	if len(groups) > 0 {
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(groups, ", "))
	}
	return b.String()
}

// ValidateGroupBy returns one message per problem in a GROUP_STAT config
func ValidateGroupBy(cfg *graph.GroupByConfig) []string {
	if cfg == nil {
		return []string{"group-by configuration is missing"}
	}
	var problems []string
	if len(cfg.Statistics) == 0 {
		problems = append(problems, "at least one statistic is required")
	}
	for _, s := range cfg.Statistics {
		if s.FieldID == "" {
			problems = append(problems, fmt.Sprintf("statistic %s must select a field", s.ID))
		}
		if s.ResultAlias == "" {
			problems = append(problems, fmt.Sprintf("statistic %s must set a result alias", s.ID))
		}
		switch s.FunctionType {
		case FuncSum, FuncAvg, FuncCount, FuncMax, FuncMin:
		default:
			problems = append(problems, fmt.Sprintf("statistic %s has unsupported function %q", s.ID, s.FunctionType))
		}
	}
	return problems
}

func groupName(f graph.GroupByField) string {
	if f.FieldAlias != "" {
		return f.FieldAlias
	}
	if f.FieldName != "" {
		return f.FieldName
	}
	return ColumnOf(f.FieldID)
}
