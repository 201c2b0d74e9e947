package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-errors/errors"

	_ "modernc.org/sqlite"
)

// NewSQLiteStore creates a store over a SQLite database, such as the one
// Telescope itself writes when configured with the sqlite driver.
// Pass dsn="" for a private in-memory database.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	inMemory := dsn == "" || dsn == ":memory:"
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	return newSQLStore(db, sqliteDialect{}), nil
}

type sqliteDialect struct{}

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS telescope_entries (
			sequence INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			batch_id TEXT,
			family_hash TEXT,
			should_display_on_index INTEGER NOT NULL DEFAULT 1,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME,
			c_method TEXT,
			c_uri TEXT,
			c_response_status INTEGER,
			c_duration REAL,
			c_time REAL
		)`,
		`CREATE TABLE IF NOT EXISTS telescope_entries_tags (
			entry_uuid TEXT NOT NULL,
			tag TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_te_batch ON telescope_entries (batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_te_type_display ON telescope_entries (type, should_display_on_index, sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_tet_entry ON telescope_entries_tags (entry_uuid)`,
	}
}

func (sqliteDialect) jsonText(path string) string {
	return fmt.Sprintf("json_extract(content, '$.%s')", path)
}

func (d sqliteDialect) jsonNumber(path string) string {
	return fmt.Sprintf("CAST(%s AS REAL)", d.jsonText(path))
}

// like relies on SQLite's LIKE being case-insensitive for ASCII.
func (sqliteDialect) like(expr string) string {
	return expr + ` LIKE ? ESCAPE '\'`
}

func (sqliteDialect) timeArg(t time.Time) any {
	return t.UTC().Format(storedTimeLayout)
}

func (sqliteDialect) offsetOnly(offset int) string {
	return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
}
