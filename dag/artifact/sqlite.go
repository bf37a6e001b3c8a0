package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists artifacts in a single-file SQLite database, adapted
// from the teacher's graph/store/sqlite.go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path.
// ":memory:" opens an in-process database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("artifact: %s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	model_name  TEXT NOT NULL,
	pipeline_id TEXT NOT NULL,
	node_id     TEXT NOT NULL,
	value_json  TEXT NOT NULL,
	PRIMARY KEY (model_name, pipeline_id, node_id)
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifact: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, model, pipeline, node string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO artifacts (model_name, pipeline_id, node_id, value_json)
VALUES (?, ?, ?, ?)
ON CONFLICT (model_name, pipeline_id, node_id) DO UPDATE SET value_json = excluded.value_json`,
		model, pipeline, node, string(data))
	return err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, model, pipeline, node string) (any, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value_json FROM artifacts WHERE model_name = ? AND pipeline_id = ? AND node_id = ?`,
		model, pipeline, node)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, err
	}
	return value, true, nil
}
