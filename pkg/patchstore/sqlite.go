package patchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps tiles as blobs in a SQLite database. Several runs can
// share one database file; each works inside its own scope.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	scope  string
}

// NewSQLiteStore opens (creating if needed) the database at path and returns
// a store restricted to scope
func NewSQLiteStore(path, scope string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: path, scope: scope}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patches (
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (scope, name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put implements Store
func (s *SQLiteStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patches (scope, name, data) VALUES (?, ?, ?)
		ON CONFLICT (scope, name) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP`,
		s.scope, name, data)
	if err != nil {
		return fmt.Errorf("failed to store patch %s: %w", name, err)
	}
	return nil
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM patches WHERE scope = ? AND name = ?`, s.scope, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read patch %s: %w", name, err)
	}
	return data, nil
}

// List implements Store
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM patches
		WHERE scope = ? AND substr(name, 1, length(?)) = ?
		ORDER BY name`, s.scope, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan patch name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete implements Store
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM patches WHERE scope = ? AND name = ?`, s.scope, name)
	if err != nil {
		return fmt.Errorf("failed to remove patch %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
