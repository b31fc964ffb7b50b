// Package postgres stores workflow drafts in PostgreSQL
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

// DraftSaver implements draft.Saver for PostgreSQL
type DraftSaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// Open connects to dsn and creates the draft table. An empty table keeps
// the default name.
func Open(ctx context.Context, dsn, table string, serializer *serialization.Serializer) (*DraftSaver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := NewDraftSaver(pool, serializer).WithTableName(table)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewDraftSaver creates a new PostgreSQL draft saver
func NewDraftSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *DraftSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &DraftSaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "drafts",
	}
}

// WithTableName overrides the default table name. Only letters, digits
// and underscores are accepted; anything else keeps the current name.
func (s *DraftSaver) WithTableName(name string) *DraftSaver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Save stores a draft, replacing any draft with the same ID
func (s *DraftSaver) Save(ctx context.Context, d *draft.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}

	data, err := draft.EncodeDocument(s.serializer, d.Document)
	if err != nil {
		return fmt.Errorf("failed to serialize draft document: %w", err)
	}

	metadataJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, workflow_id, name, document, metadata, timestamp, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			metadata = EXCLUDED.metadata,
			timestamp = EXCLUDED.timestamp,
			version = EXCLUDED.version
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		d.ID, d.WorkflowID, d.Name, data, metadataJSON, d.Timestamp, d.Version)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Load retrieves a draft with its document
func (s *DraftSaver) Load(ctx context.Context, id string) (*draft.Draft, error) {
	if id == "" {
		return nil, draft.ErrInvalidDraftID
	}

	query := fmt.Sprintf(`
		SELECT id, workflow_id, name, document, metadata, timestamp, version
		FROM %s
		WHERE id = $1
	`, s.tableName)

	var d draft.Draft
	var data []byte
	var metadataJSON []byte

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.WorkflowID, &d.Name, &data, &metadataJSON, &d.Timestamp, &d.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, draft.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	if err := json.Unmarshal(metadataJSON, &d.Metadata); err != nil {
		return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
	}
	if d.Document, err = draft.DecodeDocument(s.serializer, data); err != nil {
		return nil, fmt.Errorf("failed to deserialize draft document: %w", err)
	}
	return &d, nil
}

// List retrieves draft headers based on filter criteria
func (s *DraftSaver) List(ctx context.Context, filter draft.Filter) ([]*draft.Draft, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]*draft.Draft, 0)
	for rows.Next() {
		var d draft.Draft
		var metadataJSON []byte

		if err := rows.Scan(&d.ID, &d.WorkflowID, &d.Name, &metadataJSON, &d.Timestamp, &d.Version); err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
		}
		drafts = append(drafts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

// Delete removes a draft by ID
func (s *DraftSaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return draft.ErrInvalidDraftID
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if result.RowsAffected() == 0 {
		return draft.ErrDraftNotFound
	}
	return nil
}

// CreateTables creates the necessary database tables
func (s *DraftSaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			document BYTEA NOT NULL,
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version VARCHAR(50) NOT NULL DEFAULT '1.0.0'
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_workflow_id ON %[1]s (workflow_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s (timestamp);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing drafts. Tags are
// matched with JSONB containment on the metadata column.
func (s *DraftSaver) buildListQuery(filter draft.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT id, workflow_id, name, metadata, timestamp, version FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)
	argCount := 0

	if filter.WorkflowID != "" {
		argCount++
		query += fmt.Sprintf(" AND workflow_id = $%d", argCount)
		args = append(args, filter.WorkflowID)
	}
	if filter.Since != nil {
		argCount++
		query += fmt.Sprintf(" AND timestamp > $%d", argCount)
		args = append(args, *filter.Since)
	}
	if filter.Before != nil {
		argCount++
		query += fmt.Sprintf(" AND timestamp < $%d", argCount)
		args = append(args, *filter.Before)
	}
	if len(filter.Tags) > 0 {
		tags, _ := json.Marshal(map[string][]string{"tags": filter.Tags})
		argCount++
		query += fmt.Sprintf(" AND metadata @> $%d::jsonb", argCount)
		args = append(args, string(tags))
	}

	query += " ORDER BY timestamp DESC, id ASC"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}
	return query, args
}

// Close closes the connection pool
func (s *DraftSaver) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
