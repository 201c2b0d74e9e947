package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-errors/errors"

	_ "github.com/duckdb/duckdb-go/v2"
)

// NewDuckDBStore creates a new DuckDB-backed store.
// Pass dsn="" for in-memory, or a file path for persistent storage.
func NewDuckDBStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Errorf("open duckdb: %w", err)
	}
	return newSQLStore(db, duckDialect{}), nil
}

type duckDialect struct{}

func (duckDialect) schema() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS telescope_entries_sequence_seq START 1`,
		`CREATE TABLE IF NOT EXISTS telescope_entries (
			sequence BIGINT PRIMARY KEY DEFAULT nextval('telescope_entries_sequence_seq'),
			uuid VARCHAR NOT NULL UNIQUE,
			batch_id VARCHAR,
			family_hash VARCHAR,
			should_display_on_index BOOLEAN NOT NULL DEFAULT true,
			type VARCHAR NOT NULL,
			content VARCHAR NOT NULL,
			created_at TIMESTAMP,
			c_method VARCHAR,
			c_uri VARCHAR,
			c_response_status INTEGER,
			c_duration DOUBLE,
			c_time DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS telescope_entries_tags (
			entry_uuid VARCHAR NOT NULL,
			tag VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_te_batch ON telescope_entries (batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_te_type_display ON telescope_entries (type, should_display_on_index)`,
		`CREATE INDEX IF NOT EXISTS idx_tet_entry ON telescope_entries_tags (entry_uuid)`,
	}
}

func (duckDialect) jsonText(path string) string {
	return fmt.Sprintf("json_extract_string(content, '$.%s')", path)
}

func (d duckDialect) jsonNumber(path string) string {
	return fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", d.jsonText(path))
}

func (duckDialect) like(expr string) string {
	return expr + ` ILIKE ? ESCAPE '\'`
}

func (duckDialect) timeArg(t time.Time) any {
	return t.UTC()
}

func (duckDialect) offsetOnly(offset int) string {
	return fmt.Sprintf("OFFSET %d", offset)
}
