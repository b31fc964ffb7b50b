package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/join"
	"github.com/flowgraph/mpcflow/internal/core/model"
	"github.com/flowgraph/mpcflow/internal/core/plan"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

// Implementation names reported per task
const (
	ImplementationSoftware = "SOFTWARE_CRYPTO"
	ImplementationTEE      = "TEE"
)

type computeKey struct {
	raw  graph.ComputeType
	path graph.TechPath
}

var computeTypes = map[computeKey]plan.ComputeType{
	{graph.ComputeTypePSI, ""}:                     plan.ComputePSI,
	{graph.ComputeTypePIR, ""}:                     plan.ComputePIR,
	{graph.ComputeTypeMPC, ""}:                     plan.ComputeMPC,
	{graph.ComputeTypePSI, graph.TechPathSoftware}: plan.ComputePSI,
	{graph.ComputeTypePIR, graph.TechPathSoftware}: plan.ComputePIR,
	{graph.ComputeTypeMPC, graph.TechPathSoftware}: plan.ComputeMPC,
	{graph.ComputeTypePSI, graph.TechPathTEE}:      plan.ComputeTEEPSI,
	{graph.ComputeTypePIR, graph.TechPathTEE}:      plan.ComputeTEEPIR,
	{graph.ComputeTypeMPC, graph.TechPathTEE}:      plan.ComputeTEEMPC,
}

// MapComputeType combines the canvas compute type and technology path into
// the plan compute type. CONCAT is the same on every path. Unknown
// combinations fail with ErrUnsupportedComputeType.
func MapComputeType(raw graph.ComputeType, path graph.TechPath) (plan.ComputeType, error) {
	if raw == graph.ComputeTypeConcat {
		return plan.ComputeConcat, nil
	}
	if ct, ok := computeTypes[computeKey{raw, path}]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("%w: %q on path %q", ErrUnsupportedComputeType, raw, path)
}

// assembler builds plan tasks from one snapshot
type assembler struct {
	snap  *graph.Snapshot
	names entityNames
	job   JobOptions
}

// buildTask assembles the plan entry of one task node and collects the
// task's diagnostics
func (a *assembler) buildTask(n *graph.Node) (plan.Task, validation.Result) {
	res := validation.ValidateTaskConfig(n)

	raw, path, label := taskHeader(n.Payload)
	ct, err := MapComputeType(raw, path)
	// an unknown path is already reported by the task validation
	if err != nil && !res.HasError(validation.CodeInvalidTechPath) {
		res.Errorf(validation.CodeUnsupportedCompute, err, n.ID, "%v", err)
	}
	if label == "" {
		label = n.ID
	}

	providers := graph.TaskInputs(n.Payload)
	task := plan.Task{
		Kind:              plan.TaskKind,
		TaskID:            n.ID,
		Name:              label,
		TaskSrcIDList:     a.snap.Upstream(n.ID),
		ServiceType:       a.job.ServiceType,
		ComputeType:       ct,
		Implementation:    ImplementationSoftware,
		DataProviderList:  a.dataProviders(providers),
		ParticipantList:   collectParticipants([]*graph.Node{n}, a.names),
		JoinConditionList: a.joinConditions(providers),
	}
	if ct.IsTEE() {
		task.Implementation = ImplementationTEE
	}

	final, byAbsence := a.isFinalTask(n, raw)
	task.IsFinalTask = final
	if byAbsence {
		res.Warnf(validation.CodeDeadEnd, n.ID, "task has no output and no consumer, it is treated as final")
	}

	if t, ok := n.Payload.(*graph.ComputeTaskData); ok {
		task.ExpressionList = a.expressions(t, providers)
		task.ModelProviderList, task.Aggregation = a.models(t.Models, providers)
		task.ComputeProviderList = a.computeProviders(t.ComputeProviders)
	}
	task.ResultConsumerList = a.resultConsumers(graph.TaskOutputs(n.Payload))
	return task, res
}

func taskHeader(p graph.Payload) (graph.ComputeType, graph.TechPath, string) {
	switch t := p.(type) {
	case *graph.ComputeTaskData:
		return t.ComputeType, t.TechPath, t.Label
	case *graph.LocalTaskData:
		raw := t.ComputeType
		if raw == "" {
			raw = graph.ComputeTypeConcat
		}
		return raw, "", t.Label
	}
	return "", "", ""
}

// isFinalTask reports whether a task delivers a result nobody consumes.
// byAbsence is set when the only reason is that the task has neither an
// output nor a consumer.
func (a *assembler) isFinalTask(n *graph.Node, raw graph.ComputeType) (final, byAbsence bool) {
	if raw == graph.ComputeTypeConcat {
		return true, false
	}

	outputs := graph.TaskOutputs(n.Payload)
	var owned []string
	for _, other := range a.snap.Nodes() {
		if other.Kind == graph.KindOutputData && a.snap.OwnerOf(other.ID) == n.ID {
			owned = append(owned, other.ID)
		}
	}

	if len(a.snap.Downstream(n.ID)) == 0 {
		return true, len(outputs) == 0 && len(owned) == 0
	}
	for _, id := range owned {
		if len(a.snap.Consumers(id)) == 0 {
			return true, false
		}
	}
	for _, o := range outputs {
		if o.OutputNodeID == "" {
			return true, false
		}
	}
	return false, false
}

func (a *assembler) dataProviders(providers []graph.InputProvider) []plan.DataProvider {
	out := []plan.DataProvider{}
	index := make(map[string]int)
	for _, p := range providers {
		i, ok := index[p.ParticipantID]
		if !ok {
			i = len(out)
			index[p.ParticipantID] = i
			out = append(out, plan.DataProvider{
				ParticipantID: p.ParticipantID,
				EntityName:    a.names.name(p.ParticipantID),
			})
		}
		item := plan.DatasetItem{
			Dataset:         p.Dataset,
			ColumnNameList:  []string{},
			ColumnAliasList: []string{},
			ColumnTypeList:  []string{},
			CustomParam:     map[string]interface{}{},
		}
		for _, f := range p.Fields {
			item.ColumnNameList = append(item.ColumnNameList, f.ColumnName)
			item.ColumnAliasList = append(item.ColumnAliasList, f.Key())
			item.ColumnTypeList = append(item.ColumnTypeList, f.ColumnType)
		}
		out[i].DatasetList = append(out[i].DatasetList, item)
	}
	return out
}

func (a *assembler) joinConditions(providers []graph.InputProvider) []plan.JoinCondition {
	var out []plan.JoinCondition
	for _, c := range join.BuildConditions(providers) {
		jc := plan.JoinCondition{JoinType: string(c.Type)}
		for _, op := range c.Operands {
			jc.JoinOperands = append(jc.JoinOperands, plan.JoinOperand{
				ParticipantID:  op.ParticipantID,
				EntityName:     a.names.name(op.ParticipantID),
				Dataset:        op.Dataset,
				ColumnNameList: op.ColumnNames,
			})
		}
		out = append(out, jc)
	}
	return out
}

// expressions returns at most one expression: the first expression model,
// otherwise the task's own expression
func (a *assembler) expressions(t *graph.ComputeTaskData, providers []graph.InputProvider) []plan.Expression {
	for _, m := range t.Models {
		if m.Type == graph.ModelExpression {
			return []plan.Expression{{
				ExpressionParamList: a.expressionParams(m.Parameters, providers),
				Expression:          m.Expression,
			}}
		}
	}
	if t.Expression != "" {
		return []plan.Expression{{ExpressionParamList: []interface{}{}, Expression: t.Expression}}
	}
	return nil
}

func (a *assembler) expressionParams(params []graph.ModelParameter, providers []graph.InputProvider) []interface{} {
	out := []interface{}{}
	for _, p := range a.modelParameters(params, providers) {
		out = append(out, p)
	}
	return out
}

func (a *assembler) models(models []graph.ComputeModelConfig, providers []graph.InputProvider) ([]plan.ModelProvider, *plan.Aggregation) {
	var out []plan.ModelProvider
	var agg *plan.Aggregation
	for _, m := range models {
		if m.Type == graph.ModelExpression {
			continue
		}
		out = append(out, plan.ModelProvider{
			ModelID:            m.ID,
			ParticipantID:      m.ParticipantID,
			EntityName:         a.names.name(m.ParticipantID),
			Name:               m.Name,
			Type:               string(m.Type),
			Version:            m.Version,
			ModelParameterList: a.modelParameters(m.Parameters, providers),
		})
		if m.Type == graph.ModelGroupStat && agg == nil {
			agg = a.aggregation(m.GroupBy, providers)
		}
	}
	return out, agg
}

// modelParameters translates parameter bindings. Field bindings become a
// provenance operand; fixed values are carried as {"name": "value"} in
// customParam. Unresolvable bindings are skipped; validation reports them.
func (a *assembler) modelParameters(params []graph.ModelParameter, providers []graph.InputProvider) []plan.ModelParameter {
	out := []plan.ModelParameter{}
	for _, p := range params {
		if p.BindingType == graph.BindingField {
			f, err := model.Resolve(providers, p.FieldRef)
			if err != nil {
				continue
			}
			alias := f.ColumnAlias
			if alias == "" {
				alias = f.ColumnName
			}
			out = append(out, plan.ModelParameter{
				ParticipantID:   f.ParticipantID,
				EntityName:      a.names.name(f.ParticipantID),
				Dataset:         f.Dataset,
				ColumnNameList:  []string{f.ColumnName},
				ColumnAliasList: []string{alias},
			})
			continue
		}
		custom, _ := json.Marshal(map[string]string{p.Name: p.FixedValue})
		out = append(out, plan.ModelParameter{
			ColumnNameList:  []string{},
			ColumnAliasList: []string{},
			CustomParam:     string(custom),
		})
	}
	return out
}

// aggregation fills the plan aggregation of a GROUP_STAT model from the
// task inputs the fields resolve to. Unresolvable fields are left out;
// validation reports them.
func (a *assembler) aggregation(cfg *graph.GroupByConfig, providers []graph.InputProvider) *plan.Aggregation {
	if cfg == nil {
		return nil
	}
	agg := &plan.Aggregation{
		GroupByList:  []plan.GroupBy{},
		FunctionList: []plan.Function{},
		HavingList:   []interface{}{},
	}
	names := model.GroupByOutputFields(cfg)
	for i, g := range cfg.GroupByFields {
		f, err := model.Resolve(providers, g.FieldID)
		if err != nil {
			continue
		}
		colType := g.FieldType
		if colType == "" {
			colType = f.ColumnType
		}
		agg.GroupByList = append(agg.GroupByList, plan.GroupBy{
			ParticipantID: f.ParticipantID,
			Dataset:       f.Dataset,
			ColumnName:    f.ColumnName,
			ColumnAlias:   names[i].ColumnAlias,
			ColumnType:    colType,
		})
	}
	for _, s := range cfg.Statistics {
		f, err := model.Resolve(providers, s.FieldID)
		if err != nil {
			continue
		}
		agg.FunctionList = append(agg.FunctionList, plan.Function{
			FunctionType:  s.FunctionType,
			ParticipantID: f.ParticipantID,
			Dataset:       f.Dataset,
			ColumnName:    f.ColumnName,
			ResultAlias:   s.ResultAlias,
			ResultType:    model.ResultType(s.FunctionType),
		})
	}
	return agg
}

// computeProviders nests resources as participant group -> node -> card
func (a *assembler) computeProviders(resources []graph.ComputeResourceConfig) []plan.ComputeProvider {
	var out []plan.ComputeProvider
	groups := make(map[[2]string]int)
	for _, r := range resources {
		gk := [2]string{r.ParticipantID, r.GroupID}
		gi, ok := groups[gk]
		if !ok {
			gi = len(out)
			groups[gk] = gi
			out = append(out, plan.ComputeProvider{
				GroupID:       r.GroupID,
				ParticipantID: r.ParticipantID,
				EntityName:    a.names.name(r.ParticipantID),
				GroupName:     r.GroupName,
				GroupType:     plan.GroupTypeTEE,
			})
		}
		g := &out[gi]

		ni := -1
		for i := range g.ComputeNodeList {
			if g.ComputeNodeList[i].NodeID == r.NodeID {
				ni = i
				break
			}
		}
		if ni < 0 {
			ni = len(g.ComputeNodeList)
			g.ComputeNodeList = append(g.ComputeNodeList, plan.ComputeNode{
				NodeID:      r.NodeID,
				NodeName:    r.NodeName,
				NodeAddress: r.NodeAddress,
				NodeType:    plan.NodeTypeTEE,
			})
		}
		if r.CardSerial != "" {
			node := &g.ComputeNodeList[ni]
			node.ComputeCardList = append(node.ComputeCardList, plan.ComputeCard{
				CardSerial: r.CardSerial,
				CardModel:  r.CardModel,
				CardType:   plan.CardTypeTEE,
			})
		}
	}
	return out
}

// resultConsumers groups outputs by receiving participant
func (a *assembler) resultConsumers(outputs []graph.OutputDataConfig) []plan.ResultConsumer {
	var out []plan.ResultConsumer
	index := make(map[string]int)
	for _, o := range outputs {
		i, ok := index[o.ParticipantID]
		if !ok {
			i = len(out)
			index[o.ParticipantID] = i
			out = append(out, plan.ResultConsumer{
				ParticipantID: o.ParticipantID,
				EntityName:    a.names.name(o.ParticipantID),
			})
		}
		item := plan.DatasetItem{
			Dataset:         o.Dataset,
			ColumnNameList:  []string{},
			ColumnAliasList: []string{},
			ColumnTypeList:  []string{},
			CustomParam:     map[string]interface{}{},
		}
		for _, f := range o.OutputFields {
			alias := f.ColumnAlias
			if alias == "" {
				alias = f.ColumnName
			}
			item.ColumnNameList = append(item.ColumnNameList, f.ColumnName)
			item.ColumnAliasList = append(item.ColumnAliasList, alias)
			item.ColumnTypeList = append(item.ColumnTypeList, f.ColumnType)
		}
		out[i].IsEncrypted = out[i].IsEncrypted || o.IsEncrypted
		out[i].DatasetList = append(out[i].DatasetList, item)
	}
	return out
}
