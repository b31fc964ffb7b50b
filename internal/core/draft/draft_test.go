package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

func sampleSnapshot() *graph.Snapshot {
	nodes := []*graph.Node{
		graph.NewNode("ds1", &graph.DataSourceData{ParticipantID: "ent_001", TableName: "customers"}),
		graph.NewNode("t1", &graph.ComputeTaskData{ComputeType: graph.ComputeTypePSI}),
	}
	edges := []*graph.Edge{{ID: "e1", Source: "ds1", Target: "t1"}}
	return graph.NewSnapshot(nodes, edges)
}

func TestNew(t *testing.T) {
	d := New("wf-1", "first", sampleSnapshot())
	assert.Equal(t, "wf-1", d.WorkflowID)
	assert.Equal(t, graph.DocumentVersion, d.Version)
	assert.Equal(t, Metadata{Nodes: 2, Edges: 1, Tasks: 1}, d.Metadata)
	assert.ErrorIs(t, d.Validate(), ErrInvalidDraftID)

	d.ID = "d-1"
	assert.NoError(t, d.Validate())
}

func TestDraft_Validate(t *testing.T) {
	doc := graph.NewDocument(sampleSnapshot())
	tests := []struct {
		name  string
		draft *Draft
		err   error
	}{
		{"nil", nil, ErrInvalidDraftID},
		{"missing id", &Draft{WorkflowID: "wf", Document: doc}, ErrInvalidDraftID},
		{"missing workflow", &Draft{ID: "d", Document: doc}, ErrInvalidWorkflowID},
		{"missing document", &Draft{ID: "d", WorkflowID: "wf"}, ErrNilDocument},
		{"valid", &Draft{ID: "d", WorkflowID: "wf", Document: doc}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestFilter(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	assert.ErrorIs(t, (&Filter{Limit: -1}).Validate(), ErrInvalidLimit)
	assert.ErrorIs(t, (&Filter{Offset: -1}).Validate(), ErrInvalidOffset)
	assert.ErrorIs(t, (&Filter{Since: &later, Before: &earlier}).Validate(), ErrInvalidTimeRange)
	assert.NoError(t, (&Filter{Since: &earlier, Before: &later}).Validate())

	d := &Draft{ID: "d", WorkflowID: "wf", Timestamp: now, Metadata: Metadata{Tags: []string{"psi", "prod"}}}
	assert.True(t, (&Filter{}).Match(d))
	assert.True(t, (&Filter{WorkflowID: "wf", Since: &earlier, Before: &later, Tags: []string{"prod"}}).Match(d))
	assert.False(t, (&Filter{WorkflowID: "other"}).Match(d))
	assert.False(t, (&Filter{Since: &later}).Match(d))
	assert.False(t, (&Filter{Before: &earlier}).Match(d))
	assert.False(t, (&Filter{Tags: []string{"psi", "dev"}}).Match(d))
}

func TestHeader(t *testing.T) {
	d := New("wf", "n", sampleSnapshot())
	d.Metadata.Tags = []string{"a"}
	h := d.Header()
	assert.Nil(t, h.Document)
	assert.NotNil(t, d.Document)
	h.Metadata.Tags[0] = "b"
	assert.Equal(t, "a", d.Metadata.Tags[0])
}

func TestDocumentCodec(t *testing.T) {
	serializers := map[string]*serialization.Serializer{
		"default": serialization.DefaultSerializer(),
		"json":    serialization.NewSerializer(serialization.SerializationConfig{Codec: serialization.NewJSONCodec()}),
		"gzip": serialization.NewSerializer(serialization.SerializationConfig{
			Codec:       serialization.NewMsgPackCodec(),
			Compression: serialization.CompressionGzip,
		}),
	}
	doc := graph.NewDocument(sampleSnapshot())

	for name, s := range serializers {
		t.Run(name, func(t *testing.T) {
			data, err := EncodeDocument(s, doc)
			require.NoError(t, err)

			got, err := DecodeDocument(s, data)
			require.NoError(t, err)
			require.Len(t, got.Nodes, 2)
			assert.Equal(t, graph.KindDataSource, got.Nodes[0].Kind)
			ds, ok := got.Nodes[0].Payload.(*graph.DataSourceData)
			require.True(t, ok)
			assert.Equal(t, "customers", ds.TableName)
			assert.Equal(t, doc.Edges, got.Edges)
		})
	}

	_, err := EncodeDocument(serialization.DefaultSerializer(), nil)
	assert.ErrorIs(t, err, ErrNilDocument)

	_, err = DecodeDocument(serialization.DefaultSerializer(), []byte("garbage"))
	assert.Error(t, err)
}
