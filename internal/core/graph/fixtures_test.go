package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func dataSource(id, participant, table string, cols ...string) *Node {
	fields := make([]Field, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, Field{ColumnName: c, Type: "VARCHAR"})
	}
	return NewNode(id, &DataSourceData{
		Label:         id,
		ParticipantID: participant,
		AssetName:     table,
		DBName:        "db",
		TableName:     table,
		Fields:        fields,
	})
}

func provider(source, participant, dataset string, joinCols ...string) InputProvider {
	fields := make([]FieldMapping, 0, len(joinCols))
	for _, c := range joinCols {
		fields = append(fields, FieldMapping{ColumnName: c, ColumnType: "VARCHAR", IsJoinField: true, JoinType: JoinInner})
	}
	return InputProvider{
		SourceNodeID:  source,
		SourceType:    SourceDataSource,
		ParticipantID: participant,
		Dataset:       dataset,
		Fields:        fields,
	}
}

func computeTask(id string, ct ComputeType, providers ...InputProvider) *Node {
	return NewNode(id, &ComputeTaskData{
		Label:          id,
		ComputeType:    ct,
		TechPath:       TechPathSoftware,
		InputProviders: providers,
	})
}

func outputNode(id, parent, participant string) *Node {
	return NewNode(id, &OutputDataData{Label: id, ParentTaskID: parent, ParticipantID: participant, Dataset: id})
}

func modelNode(id, parent string) *Node {
	return NewNode(id, &ModelNodeData{Label: id, ModelType: ModelSPDZ, ParentTaskID: parent, ParticipantID: "ent_001"})
}

func resourceNode(id, parent string) *Node {
	return NewNode(id, &ComputeResourceData{Label: id, ResourceType: "TEE", ParentTaskID: parent, ParticipantID: "ent_001"})
}

func mustAdd(t *testing.T, s *Store, nodes ...*Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, s.AddNode(n))
	}
}

func mustEdge(t *testing.T, s *Store, source, target string) *Edge {
	t.Helper()
	e, err := s.AddEdge(&Edge{Source: source, Target: target, SourceHandle: "output", TargetHandle: "input"})
	require.NoError(t, err)
	return e
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
