// ABOUTME: SQLite-backed tool call audit store using modernc.org/sqlite
// ABOUTME: Opens the database in WAL mode with a busy timeout and migrates the tool_calls schema

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists tool call audit records.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single connection: concurrent writers wait on the pool rather than the file lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("opened SQLite store", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			arguments_json TEXT NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT,
			principal TEXT,
			duration_ms INTEGER NOT NULL,
			ts TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_ts ON tool_calls(ts);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations brings databases created before a column existed up to date.
// Idempotent.
func (s *SQLiteStore) runMigrations() error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('tool_calls') WHERE name = 'principal'`).Scan(&exists)
	if err == nil {
		return nil
	}
	if _, err := s.db.Exec(`ALTER TABLE tool_calls ADD COLUMN principal TEXT`); err != nil {
		return fmt.Errorf("adding principal column to tool_calls: %w", err)
	}
	s.logger.Info("applied migration", "column", "principal", "table", "tool_calls")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
