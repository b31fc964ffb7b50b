package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/mpcflow/internal/core/graph"
)

// canvas: ds1 -> t1 (owns out1) ; out1 -> t2 ; m1, r1 owned by t1
func canvas() ([]*graph.Node, []*graph.Edge) {
	nodes := []*graph.Node{
		graph.NewNode("ds1", &graph.DataSourceData{ParticipantID: "ent_001", TableName: "t1"}),
		graph.NewNode("ds2", &graph.DataSourceData{ParticipantID: "ent_002", TableName: "t2"}),
		graph.NewNode("t1", &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI}),
		graph.NewNode("t2", &graph.LocalTaskData{ComputeType: graph.ComputeTypeConcat, ParticipantID: "ent_001"}),
		graph.NewNode("out1", &graph.OutputDataData{ParentTaskID: "t1"}),
		graph.NewNode("out2", &graph.OutputDataData{ParentTaskID: "t2"}),
		graph.NewNode("m1", &graph.ModelNodeData{ParentTaskID: "t1"}),
		graph.NewNode("r1", &graph.ComputeResourceData{ParentTaskID: "t1"}),
	}
	edges := []*graph.Edge{
		{ID: "e1", Source: "ds1", Target: "t1"},
		{ID: "e2", Source: "out1", Target: "t2"},
	}
	return nodes, edges
}

func TestCheckConnection(t *testing.T) {
	nodes, edges := canvas()

	tests := []struct {
		name   string
		edge   *graph.Edge
		reason Reason
	}{
		{name: "data source to compute task", edge: &graph.Edge{Source: "ds2", Target: "t1"}},
		{name: "data source to local task", edge: &graph.Edge{Source: "ds2", Target: "t2"}},
		{name: "model to task", edge: &graph.Edge{Source: "m1", Target: "t1"}},
		{name: "resource to task", edge: &graph.Edge{Source: "r1", Target: "t1"}},
		{name: "generated handles", edge: &graph.Edge{Source: "ds2", Target: "t1", SourceHandle: "ds2-output-0", TargetHandle: "t1-input-1"}},
		{name: "self loop", edge: &graph.Edge{Source: "t1", Target: "t1"}, reason: ReasonSelfLoop},
		{name: "unknown source", edge: &graph.Edge{Source: "nope", Target: "t1"}, reason: ReasonUnknownNode},
		{name: "unknown target", edge: &graph.Edge{Source: "ds1", Target: "nope"}, reason: ReasonUnknownNode},
		{name: "input handle as source", edge: &graph.Edge{Source: "ds2", Target: "t1", SourceHandle: "input"}, reason: ReasonHandleRole},
		{name: "output handle as target", edge: &graph.Edge{Source: "ds2", Target: "t1", TargetHandle: "output"}, reason: ReasonHandleRole},
		{name: "task to task", edge: &graph.Edge{Source: "t1", Target: "t2"}, reason: ReasonKindNotAllowed},
		{name: "data source to output", edge: &graph.Edge{Source: "ds2", Target: "out1"}, reason: ReasonKindNotAllowed},
		{name: "model to local task", edge: &graph.Edge{Source: "m1", Target: "t2"}, reason: ReasonKindNotAllowed},
		{name: "output feeding its own task", edge: &graph.Edge{Source: "out1", Target: "t1"}, reason: ReasonCycle},
		{name: "output closing a loop", edge: &graph.Edge{Source: "out2", Target: "t1"}, reason: ReasonCycle},
		{name: "duplicate", edge: &graph.Edge{Source: "ds1", Target: "t1"}, reason: ReasonDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckConnection(tt.edge, nodes, edges)
			assert.Equal(t, tt.reason == ReasonNone, v.OK)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, v.OK, IsValidConnection(tt.edge, nodes, edges))
			if !v.OK {
				assert.NotEmpty(t, v.Message)
				assert.ErrorIs(t, v.Err(), graph.ErrConnectionRejected)
			}
		})
	}
}

func TestConnectionPolicyOnStore(t *testing.T) {
	s := graph.NewStore(graph.WithConnectionCheck(ConnectionPolicy()))
	nodes, _ := canvas()
	for _, n := range nodes {
		require.NoError(t, s.AddNode(n))
	}

	e, err := s.Connect(&graph.Edge{Source: "ds1", Target: "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	_, err = s.Connect(&graph.Edge{Source: "t1", Target: "t2"})
	require.ErrorIs(t, err, graph.ErrConnectionRejected)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ReasonKindNotAllowed, connErr.Reason)

	_, edges := s.Len()
	assert.Equal(t, 1, edges)
}

func TestCanAcceptMoreInputs(t *testing.T) {
	_, edges := canvas()
	assert.True(t, CanAcceptMoreInputs("t1", edges, 0))
	assert.True(t, CanAcceptMoreInputs("t1", edges, 2))
	assert.False(t, CanAcceptMoreInputs("t1", edges, 1))
}

func TestAllowedTargets(t *testing.T) {
	assert.Empty(t, AllowedTargets(graph.KindComputeTask))
	assert.Equal(t, []graph.Kind{graph.KindComputeTask}, AllowedTargets(graph.KindModelNode))

	got := AllowedTargets(graph.KindDataSource)
	got[0] = graph.KindOutputData
	assert.Equal(t, graph.KindComputeTask, AllowedTargets(graph.KindDataSource)[0])
}

func TestValidateGraph(t *testing.T) {
	t.Run("valid canvas", func(t *testing.T) {
		nodes, edges := canvas()
		assert.NoError(t, ValidateGraph(nodes, edges, GraphValidationOptions{CheckCycles: true, CheckConnections: true}))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		nodes, edges := canvas()
		edges = append(edges, &graph.Edge{ID: "e3", Source: "ds1", Target: "missing"})
		assert.ErrorIs(t, ValidateGraph(nodes, edges), graph.ErrTargetNodeNotFound)
	})

	t.Run("duplicate edge", func(t *testing.T) {
		nodes, edges := canvas()
		edges = append(edges, &graph.Edge{ID: "e3", Source: "ds1", Target: "t1"})
		assert.ErrorIs(t, ValidateGraph(nodes, edges), graph.ErrDuplicateEdge)
	})

	t.Run("duplicate node", func(t *testing.T) {
		nodes, edges := canvas()
		nodes = append(nodes, graph.NewNode("ds1", &graph.DataSourceData{ParticipantID: "ent_001", TableName: "t1"}))
		assert.ErrorIs(t, ValidateGraph(nodes, edges), graph.ErrDuplicateNode)
	})

	t.Run("rule violation", func(t *testing.T) {
		nodes, edges := canvas()
		edges = append(edges, &graph.Edge{ID: "e3", Source: "t1", Target: "t2"})
		assert.NoError(t, ValidateGraph(nodes, edges))
		assert.ErrorIs(t, ValidateGraph(nodes, edges, GraphValidationOptions{CheckConnections: true}), graph.ErrConnectionRejected)
	})

	t.Run("cycle through owned output", func(t *testing.T) {
		nodes, edges := canvas()
		edges = append(edges, &graph.Edge{ID: "e3", Source: "out2", Target: "t1"})
		// Default does not check cycles
		assert.NoError(t, ValidateGraph(nodes, edges))
		err := ValidateGraph(nodes, edges, GraphValidationOptions{CheckCycles: true})
		require.ErrorIs(t, err, graph.ErrCyclicGraph)
		assert.Contains(t, err.Error(), "t1 -> out1 -> t2 -> out2 -> t1")
	})
}
