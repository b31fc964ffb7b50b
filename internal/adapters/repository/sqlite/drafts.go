// Package sqlite stores workflow drafts in SQLite
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/flowgraph/mpcflow/internal/core/draft"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

// DraftSaver implements draft.Saver for SQLite
type DraftSaver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// Open opens the SQLite database at dsn and creates the draft table. An
// empty table keeps the default name.
func Open(ctx context.Context, dsn, table string, serializer *serialization.Serializer) (*DraftSaver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A :memory: database lives as long as its connection
	db.SetMaxOpenConns(1)

	s := NewDraftSaver(db, serializer).WithTableName(table)
	if err := s.CreateTables(ctx); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return s, nil
}

// NewDraftSaver creates a new SQLite draft saver
func NewDraftSaver(db *sql.DB, serializer *serialization.Serializer) *DraftSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &DraftSaver{
		db:         db,
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
		INSERT OR REPLACE INTO %s (id, workflow_id, name, document, metadata, timestamp, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		d.ID, d.WorkflowID, d.Name, data, string(metadataJSON), d.Timestamp.UnixNano(), d.Version)
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
		WHERE id = ?
	`, s.tableName)

	var d draft.Draft
	var data []byte
	var metadataJSON string
	var timestamp int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.WorkflowID, &d.Name, &data, &metadataJSON, &timestamp, &d.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, draft.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	d.Timestamp = time.Unix(0, timestamp)
	if err := json.Unmarshal([]byte(metadataJSON), &d.Metadata); err != nil {
		return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
	}
	if d.Document, err = draft.DecodeDocument(s.serializer, data); err != nil {
		return nil, fmt.Errorf("failed to deserialize draft document: %w", err)
	}
	return &d, nil
}

// List retrieves draft headers based on filter criteria
func (s *DraftSaver) List(ctx context.Context, filter draft.Filter) (_ []*draft.Draft, err error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer func() { err = multierr.Append(err, rows.Close()) }()

	drafts := make([]*draft.Draft, 0)
	for rows.Next() {
		var d draft.Draft
		var metadataJSON string
		var timestamp int64

		if err := rows.Scan(&d.ID, &d.WorkflowID, &d.Name, &metadataJSON, &timestamp, &d.Version); err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		d.Timestamp = time.Unix(0, timestamp)
		if err := json.Unmarshal([]byte(metadataJSON), &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to deserialize metadata: %w", err)
		}
		// Tags live inside the metadata column
		if !d.HasTags(filter.Tags) {
			continue
		}
		drafts = append(drafts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	return page(drafts, filter), nil
}

// Delete removes a draft by ID
func (s *DraftSaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return draft.ErrInvalidDraftID
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return draft.ErrDraftNotFound
	}
	return nil
}

// CreateTables creates the necessary database tables
func (s *DraftSaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			document BLOB NOT NULL,
			metadata TEXT,
			timestamp INTEGER NOT NULL,
			version TEXT NOT NULL DEFAULT '1.0.0'
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_workflow_id ON %[1]s (workflow_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_timestamp ON %[1]s (timestamp);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing drafts. Paging is
// applied after the tag filter, so it is not part of the query when tags
// are requested.
func (s *DraftSaver) buildListQuery(filter draft.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT id, workflow_id, name, metadata, timestamp, version FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)

	if filter.WorkflowID != "" {
		query += " AND workflow_id = ?"
		args = append(args, filter.WorkflowID)
	}
	if filter.Since != nil {
		query += " AND timestamp > ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND timestamp < ?"
		args = append(args, filter.Before.UnixNano())
	}

	query += " ORDER BY timestamp DESC, id ASC"

	if len(filter.Tags) == 0 {
		if filter.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, filter.Limit)
		} else if filter.Offset > 0 {
			query += " LIMIT -1"
		}
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}
	return query, args
}

// page applies offset and limit to tag-filtered results; SQL already
// paged untagged queries
func page(drafts []*draft.Draft, filter draft.Filter) []*draft.Draft {
	if len(filter.Tags) == 0 {
		return drafts
	}
	if filter.Offset >= len(drafts) {
		return []*draft.Draft{}
	}
	drafts = drafts[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(drafts) {
		drafts = drafts[:filter.Limit]
	}
	return drafts
}

// Close closes the database connection
func (s *DraftSaver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
