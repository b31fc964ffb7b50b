package mpcflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/mpcflow/internal/compiler"
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/internal/infrastructure/metrics"
	"github.com/flowgraph/mpcflow/pkg/validation"
)

func provider(src, participant, dataset string) graph.InputProvider {
	return graph.InputProvider{
		SourceNodeID:  src,
		SourceType:    graph.SourceDataSource,
		ParticipantID: participant,
		Dataset:       dataset,
		Fields: []graph.FieldMapping{
			{ColumnName: "user_id", ColumnType: "VARCHAR", IsJoinField: true, JoinType: graph.JoinInner},
		},
	}
}

// addPSI places two data sources, a PSI task and its output on the canvas
func addPSI(t *testing.T, w *Workspace) {
	t.Helper()
	nodes := []*Node{
		graph.NewNode("ds1", &graph.DataSourceData{ParticipantID: "ent_001", EntityName: "Bank A", TableName: "customers"}),
		graph.NewNode("ds2", &graph.DataSourceData{ParticipantID: "ent_002", EntityName: "Bank B", TableName: "accounts"}),
		graph.NewNode("t1", &graph.ComputeTaskData{
			Label:          "Match customers",
			ComputeType:    graph.ComputeTypePSI,
			InputProviders: []graph.InputProvider{provider("ds1", "ent_001", "customers"), provider("ds2", "ent_002", "accounts")},
			Outputs:        []graph.OutputDataConfig{{ID: "o1", ParticipantID: "ent_001", Dataset: "matched", OutputNodeID: "out1"}},
		}),
		graph.NewNode("out1", &graph.OutputDataData{ParentTaskID: "t1", ParticipantID: "ent_001", Dataset: "matched"}),
	}
	for _, n := range nodes {
		require.NoError(t, w.AddNode(n))
	}
}

func newWorkspace(t *testing.T, opts ...Option) *Workspace {
	t.Helper()
	opts = append([]Option{WithCompilerOptions(compiler.WithJobIDs(func() string { return "job_ws" }))}, opts...)
	w := New(opts...)
	t.Cleanup(func() { assert.NoError(t, w.Close()) })
	return w
}

func TestWorkspace_ConnectAndCompile(t *testing.T) {
	w := newWorkspace(t)
	addPSI(t, w)

	e, err := w.Connect(&Edge{Source: "ds1", Target: "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	_, err = w.Connect(&Edge{Source: "ds2", Target: "t1"})
	require.NoError(t, err)

	res, err := w.Compile()
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "job_ws", res.Plan.JobID)
	require.Len(t, res.Plan.TaskList, 1)
	assert.Equal(t, "Match customers", res.Plan.TaskList[0].Name)
	assert.Len(t, res.Plan.ParticipantList, 2)

	assert.True(t, w.Disconnect(e.ID))
	assert.False(t, w.Disconnect(e.ID))
}

func TestWorkspace_RejectedConnection(t *testing.T) {
	w := newWorkspace(t)
	addPSI(t, w)

	before := metrics.Count("mpcflow_connections_rejected_total", string(validation.ReasonKindNotAllowed))
	_, err := w.Connect(&Edge{Source: "ds1", Target: "out1"})
	require.ErrorIs(t, err, graph.ErrConnectionRejected)
	assert.Equal(t, before+1, metrics.Count("mpcflow_connections_rejected_total", string(validation.ReasonKindNotAllowed)))

	nodes, edges := w.Store().Len()
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 0, edges)
}

func TestWorkspace_Watch(t *testing.T) {
	w := newWorkspace(t)
	addPSI(t, w)

	var results []*Result
	var errs []error
	stop := w.Watch(func(res *Result, err error) {
		results = append(results, res)
		errs = append(errs, err)
	})

	_, err := w.Connect(&Edge{Source: "ds1", Target: "t1"})
	require.NoError(t, err)
	_, err = w.Connect(&Edge{Source: "ds2", Target: "t1"})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.NoError(t, errs[1])
	require.NotNil(t, results[1].Plan)
	assert.Len(t, results[1].Plan.TaskList, 1)

	// Removing the task leaves a canvas without tasks
	w.RemoveNode("t1")
	require.Len(t, results, 3)
	assert.NoError(t, errs[2])
	assert.Empty(t, results[2].Plan.TaskList)

	stop()
	stop()
	w.RemoveNode("ds1")
	assert.Len(t, results, 3)
}

func TestWorkspace_ExportImport(t *testing.T) {
	w := newWorkspace(t)
	addPSI(t, w)
	_, err := w.Connect(&Edge{Source: "ds1", Target: "t1"})
	require.NoError(t, err)

	data, err := w.Export().YAML()
	require.NoError(t, err)

	other := newWorkspace(t)
	require.NoError(t, other.Import(data))
	nodes, edges := other.Store().Len()
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 1, edges)

	assert.ErrorIs(t, other.Import([]byte(`{"version":"9.9.9","nodes":[],"edges":[]}`)), graph.ErrUnsupportedDocument)
}

func TestWorkspace_Drafts(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, WithWorkflowID("wf-test"))
	assert.Equal(t, "wf-test", w.WorkflowID())
	addPSI(t, w)

	saved, err := w.SaveDraft(ctx, "first", "psi")
	require.NoError(t, err)
	assert.Equal(t, "wf-test", saved.WorkflowID)
	assert.Equal(t, 4, saved.Metadata.Nodes)
	assert.Equal(t, 1, saved.Metadata.Tasks)

	w.Store().Clear()
	nodes, _ := w.Store().Len()
	require.Zero(t, nodes)

	loaded, err := w.LoadDraft(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Name)
	nodes, _ = w.Store().Len()
	assert.Equal(t, 4, nodes)

	list, err := w.Drafts(ctx, DraftFilter{Tags: []string{"psi"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	require.NoError(t, w.DeleteDraft(ctx, saved.ID))
	_, err = w.LoadDraft(ctx, saved.ID)
	assert.Error(t, err)
}
