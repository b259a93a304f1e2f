package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Schema migrations are embedded so the binary has no runtime file deps.
//
//go:embed migrations/*.up.sql
var migrations embed.FS

// MigrateUp applies all pending *.up.sql migrations in filename order.
// Applied versions are tracked in schema_migrations, so the call is
// idempotent. Each migration runs in its own transaction.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	entries, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("migrate: list files: %w", err)
	}
	sort.Strings(entries)

	for _, path := range entries {
		name := strings.TrimPrefix(path, "migrations/")
		var version int
		if _, scanErr := fmt.Sscanf(name, "%d_", &version); scanErr != nil {
			return fmt.Errorf("migrate: %s: missing numeric prefix", name)
		}

		var count int
		if scanErr := db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
		).Scan(&count); scanErr != nil {
			return fmt.Errorf("migrate: check applied %d: %w", version, scanErr)
		}
		if count > 0 {
			continue
		}

		content, readErr := migrations.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("migrate: read %s: %w", name, readErr)
		}
		if applyErr := applyMigration(db, version, name, string(content)); applyErr != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, applyErr)
		}
	}
	return nil
}

// applyMigration executes one migration inside a transaction and records it.
func applyMigration(db *sql.DB, version int, name, sqlContent string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, execErr := tx.Exec(sqlContent); execErr != nil {
		return fmt.Errorf("exec SQL: %w", execErr)
	}
	if _, execErr := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		version, name,
	); execErr != nil {
		return fmt.Errorf("record migration: %w", execErr)
	}
	return tx.Commit()
}
