package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists artifacts in a shared MySQL database, for multi-
// process or multi-host deployments where a file or single-writer SQLite
// store won't do. dsn follows the go-sql-driver/mysql DSN format.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// artifacts table exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("artifact: open mysql: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	model_name  VARCHAR(255) NOT NULL,
	pipeline_id VARCHAR(255) NOT NULL,
	node_id     VARCHAR(255) NOT NULL,
	value_json  JSON NOT NULL,
	PRIMARY KEY (model_name, pipeline_id, node_id)
) ENGINE=InnoDB;`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifact: create schema: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Save implements Store.
func (s *MySQLStore) Save(ctx context.Context, model, pipeline, node string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO artifacts (model_name, pipeline_id, node_id, value_json)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE value_json = VALUES(value_json)`,
		model, pipeline, node, string(data))
	return err
}

// Load implements Store.
func (s *MySQLStore) Load(ctx context.Context, model, pipeline, node string) (any, bool, error) {
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
