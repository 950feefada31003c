package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the local corpus schema version
	CurrentSchemaVersion = "1.1.0"

	tablePlaceholder = "{{table}}"
)

// Migration represents a schema migration of one corpus table.
// {{table}} in Up and Down is replaced with the table name.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all corpus migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    table_name TEXT NOT NULL,
    version TEXT NOT NULL,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (table_name, version)
);
`

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS "{{table}}" (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- FTS5 index over content, backed by the table itself
CREATE VIRTUAL TABLE IF NOT EXISTS "{{table}}_fts" USING fts5(
    content,
    content='{{table}}',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS "{{table}}_ai" AFTER INSERT ON "{{table}}" BEGIN
    INSERT INTO "{{table}}_fts"(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS "{{table}}_ad" AFTER DELETE ON "{{table}}" BEGIN
    INSERT INTO "{{table}}_fts"("{{table}}_fts", rowid, content) VALUES ('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS "{{table}}_au" AFTER UPDATE ON "{{table}}" BEGIN
    INSERT INTO "{{table}}_fts"("{{table}}_fts", rowid, content) VALUES ('delete', old.id, old.content);
    INSERT INTO "{{table}}_fts"(rowid, content) VALUES (new.id, new.content);
END;
`

const migrationV1Down = `
DROP TRIGGER IF EXISTS "{{table}}_au";
DROP TRIGGER IF EXISTS "{{table}}_ad";
DROP TRIGGER IF EXISTS "{{table}}_ai";
DROP TABLE IF EXISTS "{{table}}_fts";
DROP TABLE IF EXISTS "{{table}}";
`

const migrationV11Up = `
CREATE INDEX IF NOT EXISTS "idx_{{table}}_title" ON "{{table}}"(title);
`

const migrationV11Down = `
DROP INDEX IF EXISTS "idx_{{table}}_title";
`

func render(stmt, table string) string {
	return strings.ReplaceAll(stmt, tablePlaceholder, table)
}

// currentVersion returns the highest applied version for table, or 0.0.0
func currentVersion(ctx context.Context, q querier, table string) (*semver.Version, error) {
	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_version WHERE table_name = ?", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs all pending migrations for table
func ApplyMigrations(ctx context.Context, db *sql.DB, table string) error {
	if !identifierRegex.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, db, table)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		if err := applyOne(ctx, db, table, migration); err != nil {
			return err
		}

		current = migrationVersion
	}

	return nil
}

func applyOne(ctx context.Context, db *sql.DB, table string, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, render(migration.Up, table)); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (table_name, version) VALUES (?, ?)", table, migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}

	return tx.Commit()
}

// RollbackMigration rolls back the most recent migration of table
func RollbackMigration(ctx context.Context, db *sql.DB, table string) error {
	current, err := currentVersion(ctx, db, table)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback for %s", table)
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", current.Original())
	}

	if _, err := db.ExecContext(ctx, render(migration.Down, table)); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE table_name = ? AND version = ?", table, migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
