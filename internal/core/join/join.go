// Package join derives join conditions from the join fields task
// providers declare.
//
// INNER joins are transitive equality constraints, so every operand is
// merged by (participant, dataset) into a single condition. CROSS joins
// keep one condition per join key with one operand per provider.
package join

import (
	"slices"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// Operand is one participant dataset taking part in a join
type Operand struct {
	ParticipantID string   `json:"participantId"`
	Dataset       string   `json:"dataset"`
	ColumnNames   []string `json:"columnNames"`
}

// Condition is a derived join over two or more operands
type Condition struct {
	Type     graph.JoinType `json:"joinType"`
	Operands []Operand      `json:"operands"`
}

// BuildConditions derives the join conditions of a task. Fewer than two
// providers never produce a condition. The input is not modified.
func BuildConditions(providers []graph.InputProvider) []Condition {
	if len(providers) < 2 {
		return nil
	}

	var inner []Operand
	var crossKeys []string
	cross := make(map[string][]Operand)

	for _, p := range providers {
		var innerCols, keys []string
		perKey := make(map[string]*Operand)
		for _, f := range p.Fields {
			if !f.IsJoinField {
				continue
			}
			if f.EffectiveJoinType() != graph.JoinCross {
				innerCols = appendUnique(innerCols, f.ColumnName)
				continue
			}
			key := f.Key()
			op, ok := perKey[key]
			if !ok {
				op = &Operand{ParticipantID: p.ParticipantID, Dataset: p.Dataset}
				perKey[key] = op
				keys = append(keys, key)
			}
			op.ColumnNames = appendUnique(op.ColumnNames, f.ColumnName)
		}
		if len(innerCols) > 0 {
			inner = append(inner, Operand{ParticipantID: p.ParticipantID, Dataset: p.Dataset, ColumnNames: innerCols})
		}
		for _, key := range keys {
			if _, seen := cross[key]; !seen {
				crossKeys = append(crossKeys, key)
			}
			cross[key] = append(cross[key], *perKey[key])
		}
	}

	var out []Condition
	if merged := MergeOperands(inner); len(merged) >= 2 {
		out = append(out, Condition{Type: graph.JoinInner, Operands: merged})
	}
	for _, key := range crossKeys {
		if ops := cross[key]; len(ops) >= 2 {
			out = append(out, Condition{Type: graph.JoinCross, Operands: ops})
		}
	}
	return out
}

// MergeOperands merges operands sharing (participant, dataset), unioning
// their column names in first-seen order
func MergeOperands(ops []Operand) []Operand {
	var out []Operand
	index := make(map[[2]string]int)
	for _, op := range ops {
		key := [2]string{op.ParticipantID, op.Dataset}
		if i, ok := index[key]; ok {
			for _, c := range op.ColumnNames {
				out[i].ColumnNames = appendUnique(out[i].ColumnNames, c)
			}
			continue
		}
		index[key] = len(out)
		out = append(out, Operand{
			ParticipantID: op.ParticipantID,
			Dataset:       op.Dataset,
			ColumnNames:   slices.Clone(op.ColumnNames),
		})
	}
	return out
}

// IsValidCondition reports whether a condition can be exported: at least
// two operands, each naming a participant, a dataset and a column.
func IsValidCondition(c Condition) bool {
	if len(c.Operands) < 2 {
		return false
	}
	for _, op := range c.Operands {
		if op.ParticipantID == "" || op.Dataset == "" || len(op.ColumnNames) == 0 {
			return false
		}
	}
	return true
}

// HasJoinField reports whether any provider declares a join field
func HasJoinField(providers []graph.InputProvider) bool {
	for _, p := range providers {
		for _, f := range p.Fields {
			if f.IsJoinField {
				return true
			}
		}
	}
	return false
}

// FieldNames returns the distinct join field names, alias preferred
func FieldNames(providers []graph.InputProvider) []string {
	var names []string
	for _, p := range providers {
		for _, f := range p.Fields {
			if f.IsJoinField {
				names = appendUnique(names, f.Key())
			}
		}
	}
	return names
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
