package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/core/plan"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

func TestMapComputeType(t *testing.T) {
	tests := []struct {
		raw     graph.ComputeType
		path    graph.TechPath
		want    plan.ComputeType
		wantErr bool
	}{
		{raw: graph.ComputeTypePSI, want: plan.ComputePSI},
		{raw: graph.ComputeTypePIR, path: graph.TechPathSoftware, want: plan.ComputePIR},
		{raw: graph.ComputeTypeMPC, path: graph.TechPathSoftware, want: plan.ComputeMPC},
		{raw: graph.ComputeTypePSI, path: graph.TechPathTEE, want: plan.ComputeTEEPSI},
		{raw: graph.ComputeTypePIR, path: graph.TechPathTEE, want: plan.ComputeTEEPIR},
		{raw: graph.ComputeTypeMPC, path: graph.TechPathTEE, want: plan.ComputeTEEMPC},
		{raw: graph.ComputeTypeConcat, path: graph.TechPathTEE, want: plan.ComputeConcat},
		{raw: graph.ComputeTypeConcat, want: plan.ComputeConcat},
		{raw: "FHE", wantErr: true},
		{raw: graph.ComputeTypePSI, path: "quantum", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.raw)+"/"+string(tt.path), func(t *testing.T) {
			got, err := MapComputeType(tt.raw, tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedComputeType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func assemble(t *testing.T, nodes []*graph.Node, edges []*graph.Edge, taskID string) (plan.Task, validation.Result) {
	t.Helper()
	snap := graph.NewSnapshot(nodes, edges)
	n, ok := snap.Node(taskID)
	require.True(t, ok)
	asm := &assembler{snap: snap, names: entityNames{canvasDirectory(snap)}}
	return asm.buildTask(n)
}

func TestBuildTask_CrossJoin(t *testing.T) {
	cross := func(src, participant, dataset string, columns ...string) graph.InputProvider {
		p := graph.InputProvider{SourceNodeID: src, SourceType: graph.SourceDataSource, ParticipantID: participant, Dataset: dataset}
		for _, c := range columns {
			p.Fields = append(p.Fields, graph.FieldMapping{ColumnName: c, ColumnAlias: "k", ColumnType: "INT", IsJoinField: true, JoinType: graph.JoinCross})
		}
		return p
	}
	task := graph.NewNode("t1", &graph.ComputeTaskData{
		ComputeType: graph.ComputeTypePSI,
		InputProviders: []graph.InputProvider{
			cross("ds1", "ent_001", "a", "x", "y"),
			cross("ds2", "ent_001", "a", "z"),
		},
	})
	// the shared alias is reported by validation but still drives the join key
	got, _ := assemble(t, []*graph.Node{task}, nil, "t1")

	want := []plan.JoinCondition{{
		JoinType: "CROSS",
		JoinOperands: []plan.JoinOperand{
			{ParticipantID: "ent_001", EntityName: "ent_001", Dataset: "a", ColumnNameList: []string{"x", "y"}},
			{ParticipantID: "ent_001", EntityName: "ent_001", Dataset: "a", ColumnNameList: []string{"z"}},
		},
	}}
	if diff := cmp.Diff(want, got.JoinConditionList); diff != "" {
		t.Errorf("cross join mismatch (-want +got):\n%s", diff)
	}

	// same participant, two providers: one data provider, two dataset items
	require.Len(t, got.DataProviderList, 1)
	assert.Len(t, got.DataProviderList[0].DatasetList, 2)
	assert.Equal(t, []string{"k", "k"}, got.DataProviderList[0].DatasetList[0].ColumnAliasList)
}

func TestBuildTask_ModelsAndResources(t *testing.T) {
	providers := []graph.InputProvider{
		{
			SourceNodeID: "ds1", SourceType: graph.SourceDataSource, ParticipantID: "ent_001", Dataset: "t1",
			Fields: []graph.FieldMapping{
				{ColumnName: "id", ColumnType: "VARCHAR", IsJoinField: true, JoinType: graph.JoinInner},
				{ColumnName: "income", ColumnAlias: "inc", ColumnType: "DOUBLE"},
				{ColumnName: "region", ColumnType: "VARCHAR"},
			},
		},
		{
			SourceNodeID: "ds2", SourceType: graph.SourceDataSource, ParticipantID: "ent_002", Dataset: "t2",
			Fields: []graph.FieldMapping{{ColumnName: "id", ColumnType: "VARCHAR", IsJoinField: true, JoinType: graph.JoinInner}},
		},
	}
	task := graph.NewNode("t1", &graph.ComputeTaskData{
		Label:          "stats",
		ComputeType:    graph.ComputeTypeMPC,
		TechPath:       graph.TechPathTEE,
		InputProviders: providers,
		Models: []graph.ComputeModelConfig{
			{
				ID: "m-expr", Type: graph.ModelExpression, ParticipantID: "ent_001",
				Expression: "inc * 2",
				Parameters: []graph.ModelParameter{{Name: "x", BindingType: graph.BindingField, FieldRef: "ent_001.t1.income"}},
			},
			{
				ID: "m-bin", Type: graph.ModelCodeBinV2, ParticipantID: "ent_002", Name: "scorer", Version: "1.2.0",
				Parameters: []graph.ModelParameter{
					{Name: "x", BindingType: graph.BindingField, FieldRef: "ent_001.t1.income"},
					{Name: "k", BindingType: graph.BindingFixed, FixedValue: "3"},
				},
			},
			{
				ID: "m-stat", Type: graph.ModelGroupStat, ParticipantID: "ent_001",
				GroupBy: &graph.GroupByConfig{
					GroupByFields: []graph.GroupByField{{FieldID: "ent_001.t1.region", FieldName: "region", FieldType: "VARCHAR"}},
					Statistics:    []graph.Statistic{{ID: "s1", FieldID: "ent_001.t1.income", FunctionType: "AVG", ResultAlias: "avg_income"}},
				},
			},
		},
		ComputeProviders: []graph.ComputeResourceConfig{
			{ParticipantID: "ent_003", GroupID: "g1", GroupName: "tee-a", NodeID: "n1", NodeAddress: "10.0.0.1", CardSerial: "c1", CardModel: "X1"},
			{ParticipantID: "ent_003", GroupID: "g1", GroupName: "tee-a", NodeID: "n1", CardSerial: "c2", CardModel: "X1"},
			{ParticipantID: "ent_003", GroupID: "g1", GroupName: "tee-a", NodeID: "n2", CardSerial: "c3"},
			{ParticipantID: "ent_003", GroupID: "g2", GroupName: "tee-b", NodeID: "n9"},
		},
		Outputs: []graph.OutputDataConfig{
			{ParticipantID: "ent_001", Dataset: "r1", OutputFields: []graph.OutputField{{ColumnName: "avg_income", ColumnType: "DOUBLE"}}},
			{ParticipantID: "ent_001", Dataset: "r2", IsEncrypted: true},
			{ParticipantID: "ent_002", Dataset: "r3"},
		},
	})

	got, res := assemble(t, []*graph.Node{task}, nil, "t1")
	require.True(t, res.Valid(), "%v", res.Errors)
	assert.Equal(t, plan.ComputeTEEMPC, got.ComputeType)
	assert.Equal(t, "stats", got.Name)

	require.Len(t, got.ExpressionList, 1)
	assert.Equal(t, "inc * 2", got.ExpressionList[0].Expression)
	require.Len(t, got.ExpressionList[0].ExpressionParamList, 1)

	require.Len(t, got.ModelProviderList, 2)
	bin := got.ModelProviderList[0]
	assert.Equal(t, "m-bin", bin.ModelID)
	assert.Equal(t, "CodeBin-V2", bin.Type)
	require.Len(t, bin.ModelParameterList, 2)
	assert.Equal(t, plan.ModelParameter{
		ParticipantID:   "ent_001",
		EntityName:      "ent_001",
		Dataset:         "t1",
		ColumnNameList:  []string{"income"},
		ColumnAliasList: []string{"inc"},
	}, bin.ModelParameterList[0])
	assert.Equal(t, `{"k":"3"}`, bin.ModelParameterList[1].CustomParam)

	require.NotNil(t, got.Aggregation)
	assert.Equal(t, []plan.GroupBy{{ParticipantID: "ent_001", Dataset: "t1", ColumnName: "region", ColumnAlias: "region", ColumnType: "VARCHAR"}}, got.Aggregation.GroupByList)
	assert.Equal(t, "DOUBLE", got.Aggregation.FunctionList[0].ResultType)
	assert.NotNil(t, got.Aggregation.HavingList)

	require.Len(t, got.ComputeProviderList, 2)
	g1 := got.ComputeProviderList[0]
	require.Len(t, g1.ComputeNodeList, 2)
	assert.Len(t, g1.ComputeNodeList[0].ComputeCardList, 2)
	assert.Equal(t, "10.0.0.1", g1.ComputeNodeList[0].NodeAddress)
	assert.Empty(t, got.ComputeProviderList[1].ComputeNodeList[0].ComputeCardList)

	require.Len(t, got.ResultConsumerList, 2)
	assert.True(t, got.ResultConsumerList[0].IsEncrypted)
	assert.Len(t, got.ResultConsumerList[0].DatasetList, 2)
	assert.Equal(t, []string{"avg_income"}, got.ResultConsumerList[0].DatasetList[0].ColumnAliasList)
	assert.False(t, got.ResultConsumerList[1].IsEncrypted)

	var ids []string
	for _, p := range got.ParticipantList {
		ids = append(ids, p.ParticipantID)
	}
	assert.Equal(t, []string{"ent_001", "ent_002", "ent_003"}, ids)
}

func TestBuildTask_GroupStatProvenance(t *testing.T) {
	groupStat := func(cfg *graph.GroupByConfig) *graph.Node {
		return graph.NewNode("t1", &graph.ComputeTaskData{
			ComputeType: graph.ComputeTypeMPC,
			InputProviders: []graph.InputProvider{{
				SourceNodeID: "ds1", SourceType: graph.SourceDataSource, ParticipantID: "ent_001", Dataset: "orders",
				Fields: []graph.FieldMapping{
					{ColumnName: "region", ColumnType: "VARCHAR"},
					{ColumnName: "amount", ColumnType: "DOUBLE"},
				},
			}},
			Models: []graph.ComputeModelConfig{{ID: "m1", Type: graph.ModelGroupStat, ParticipantID: "ent_001", GroupBy: cfg}},
			Outputs: []graph.OutputDataConfig{{ParticipantID: "ent_001", Dataset: "totals"}},
		})
	}

	t.Run("node references resolve to the providing dataset", func(t *testing.T) {
		got, res := assemble(t, []*graph.Node{groupStat(&graph.GroupByConfig{
			GroupByFields: []graph.GroupByField{{FieldID: "input.ds1.region"}},
			Statistics:    []graph.Statistic{{ID: "s1", FieldID: "input.ds1.amount", FunctionType: "SUM", ResultAlias: "total"}},
		})}, nil, "t1")
		require.True(t, res.Valid(), "%v", res.Errors)
		require.NotNil(t, got.Aggregation)
		assert.Equal(t, []plan.GroupBy{{ParticipantID: "ent_001", Dataset: "orders", ColumnName: "region", ColumnAlias: "region", ColumnType: "VARCHAR"}}, got.Aggregation.GroupByList)
		assert.Equal(t, []plan.Function{{FunctionType: "SUM", ParticipantID: "ent_001", Dataset: "orders", ColumnName: "amount", ResultAlias: "total", ResultType: "DOUBLE"}}, got.Aggregation.FunctionList)
	})

	t.Run("unresolvable statistic fails instead of losing provenance", func(t *testing.T) {
		got, res := assemble(t, []*graph.Node{groupStat(&graph.GroupByConfig{
			Statistics: []graph.Statistic{{ID: "s1", FieldID: "amount", FunctionType: "SUM", ResultAlias: "total"}},
		})}, nil, "t1")
		assert.False(t, res.Valid())
		assert.ErrorIs(t, res.Err(), validation.ErrInvalidModel)
		require.NotNil(t, got.Aggregation)
		assert.Empty(t, got.Aggregation.FunctionList)
	})
}

func TestBuildTask_BareExpressionAndLocalTask(t *testing.T) {
	p := graph.InputProvider{
		SourceNodeID: "ds1", SourceType: graph.SourceDataSource, ParticipantID: "ent_001", Dataset: "t1",
		Fields: []graph.FieldMapping{{ColumnName: "a", ColumnType: "INT"}},
	}
	mpc := graph.NewNode("t1", &graph.ComputeTaskData{ComputeType: graph.ComputeTypeMPC, InputProviders: []graph.InputProvider{p}, Expression: "a + 1"})
	local := graph.NewNode("l1", &graph.LocalTaskData{ParticipantID: "ent_001", InputProviders: []graph.InputProvider{p}})

	got, res := assemble(t, []*graph.Node{mpc, local}, nil, "t1")
	assert.True(t, res.Valid())
	require.Len(t, got.ExpressionList, 1)
	assert.Equal(t, "a + 1", got.ExpressionList[0].Expression)
	assert.Equal(t, "t1", got.Name)

	got, res = assemble(t, []*graph.Node{mpc, local}, nil, "l1")
	assert.True(t, res.Valid())
	assert.Equal(t, plan.ComputeConcat, got.ComputeType)
	assert.True(t, got.IsFinalTask)
	assert.Nil(t, got.JoinConditionList)
	assert.Nil(t, got.ModelProviderList)
}

func TestIsFinalTask(t *testing.T) {
	nodes, edges := chain()
	snap := graph.NewSnapshot(nodes, edges)
	asm := &assembler{snap: snap}

	n, _ := snap.Node("task1")
	final, byAbsence := asm.isFinalTask(n, graph.ComputeTypePSI)
	assert.False(t, final)
	assert.False(t, byAbsence)

	// an extra unconsumed output makes task1 final again
	nodes = append(nodes, graph.NewNode("out-extra", &graph.OutputDataData{ParentTaskID: "task1"}))
	snap = graph.NewSnapshot(nodes, edges)
	asm = &assembler{snap: snap}
	n, _ = snap.Node("task1")
	final, _ = asm.isFinalTask(n, graph.ComputeTypePSI)
	assert.True(t, final)

	// no output and no consumer
	lonely := graph.NewNode("lonely", &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI})
	snap = graph.NewSnapshot([]*graph.Node{lonely}, nil)
	asm = &assembler{snap: snap}
	n, _ = snap.Node("lonely")
	final, byAbsence = asm.isFinalTask(n, graph.ComputeTypePSI)
	assert.True(t, final)
	assert.True(t, byAbsence)
}

func TestTopologicalSort(t *testing.T) {
	nodes, edges := chain()
	order, err := TopologicalSort(graph.NewSnapshot(nodes, edges))
	require.NoError(t, err)
	assert.Equal(t, []string{"task1", "taskB"}, order)

	// independent tasks keep insertion order
	a := graph.NewNode("a", &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI})
	b := graph.NewNode("b", &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI})
	order, err = TopologicalSort(graph.NewSnapshot([]*graph.Node{b, a}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, order)

	// a cycle returns insertion order with the error
	edges = append(edges, edge("e5", "out-taskB", "task1"))
	order, err = TopologicalSort(graph.NewSnapshot(nodes, edges))
	require.ErrorIs(t, err, ErrCyclicDependency)
	assert.Equal(t, []string{"taskB", "task1"}, order)
	assert.Contains(t, err.Error(), "->")
}

func TestTopologicalSort_DependenciesComeFirst(t *testing.T) {
	task := func(id string) *graph.Node {
		return graph.NewNode(id, &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI})
	}
	out := func(owner string) *graph.Node {
		return graph.NewNode("out-"+owner, &graph.OutputDataData{ParentTaskID: owner, ParticipantID: "ent_001", Dataset: owner})
	}

	// a -> {b, c} -> d -> e, and a feeds e directly; inserted in reverse
	nodes := []*graph.Node{
		task("e"), task("d"), task("c"), task("b"), task("a"),
		out("d"), out("c"), out("b"), out("a"),
	}
	edges := []*graph.Edge{
		edge("e1", "out-d", "e"),
		edge("e2", "out-a", "e"),
		edge("e3", "out-c", "d"),
		edge("e4", "out-b", "d"),
		edge("e5", "out-a", "c"),
		edge("e6", "out-a", "b"),
	}
	snap := graph.NewSnapshot(nodes, edges)

	order, err := TopologicalSort(snap)
	require.NoError(t, err)
	require.Len(t, order, 5)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "e", order[4])

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, id := range order {
		for _, dep := range snap.Upstream(id) {
			assert.Less(t, position[dep], position[id], "%s must run before %s", dep, id)
		}
	}
	assert.Equal(t, []string{"d", "a"}, snap.Upstream("e"))
}
