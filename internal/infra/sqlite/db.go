// Package sqlite owns the audit trail storage for clarion.
// Uses modernc.org/sqlite, a pure-Go driver (no CGO required).
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the modernc sqlite driver under the name "sqlite".
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the audit database at path and configures it with
// WAL journaling, foreign key enforcement and a 5s busy timeout. Use
// ":memory:" as path for in-memory databases in tests. The parent directory
// must already exist.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("sqlite.Open: parent directory %q does not exist", dir)
		}
	}

	// PRAGMAs applied at connection time via DSN query parameters.
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open %q: %w", path, err)
	}

	// WAL allows concurrent readers; writers are serialized by SQLite itself.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("sqlite.Open: ping %q: %w", path, err)
	}

	return db, nil
}
