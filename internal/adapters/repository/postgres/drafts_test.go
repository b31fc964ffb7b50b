package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

func TestPostgresDraftSaver(t *testing.T) {
	dsn := os.Getenv("MPCFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Integration test requires PostgreSQL database (set MPCFLOW_TEST_POSTGRES_DSN)")
	}

	ctx := context.Background()
	saver, err := Open(ctx, dsn, "", serialization.DefaultSerializer())
	require.NoError(t, err)
	defer func() { _ = saver.Close() }()

	snap := graph.NewSnapshot([]*graph.Node{
		graph.NewNode("ds1", &graph.DataSourceData{ParticipantID: "ent_001", TableName: "customers"}),
	}, nil)
	d := draft.New("wf-it", "integration", snap)
	d.ID = "it-" + time.Now().Format("150405.000000")
	d.Metadata.Tags = []string{"it"}

	require.NoError(t, saver.Save(ctx, d))
	defer func() { _ = saver.Delete(ctx, d.ID) }()

	loaded, err := saver.Load(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Metadata, loaded.Metadata)
	assert.Len(t, loaded.Document.Nodes, 1)

	list, err := saver.List(ctx, draft.Filter{WorkflowID: "wf-it", Tags: []string{"it"}})
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestPostgresDraftSaver_Errors(t *testing.T) {
	ctx := context.Background()

	// Validation happens before the pool is touched
	saver := &DraftSaver{
		pool:       nil,
		serializer: serialization.DefaultSerializer(),
		tableName:  "drafts",
	}

	assert.ErrorIs(t, saver.Save(ctx, nil), draft.ErrInvalidDraftID)

	_, err := saver.Load(ctx, "")
	assert.ErrorIs(t, err, draft.ErrInvalidDraftID)

	assert.ErrorIs(t, saver.Delete(ctx, ""), draft.ErrInvalidDraftID)

	_, err = saver.List(ctx, draft.Filter{Limit: -1})
	assert.ErrorIs(t, err, draft.ErrInvalidLimit)
}

func TestBuildListQuery(t *testing.T) {
	saver := NewDraftSaver(nil, nil)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := saver.buildListQuery(draft.Filter{
		WorkflowID: "wf",
		Since:      &since,
		Tags:       []string{"a"},
		Limit:      5,
		Offset:     10,
	})
	assert.Contains(t, query, "workflow_id = $1")
	assert.Contains(t, query, "timestamp > $2")
	assert.Contains(t, query, "metadata @> $3::jsonb")
	assert.Contains(t, query, "LIMIT $4")
	assert.Contains(t, query, "OFFSET $5")
	assert.Equal(t, []interface{}{"wf", since, `{"tags":["a"]}`, 5, 10}, args)

	saver.WithTableName("bad name")
	query, args = saver.WithTableName("canvas_drafts").buildListQuery(draft.Filter{})
	assert.Equal(t, "SELECT id, workflow_id, name, metadata, timestamp, version FROM canvas_drafts WHERE 1=1 ORDER BY timestamp DESC, id ASC", query)
	assert.Empty(t, args)
}
