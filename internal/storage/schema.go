package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the cache layout changes. A cache with a
// different version is dropped and rebuilt.
const SchemaVersion = "1"

const createFilesTable = `
CREATE TABLE IF NOT EXISTS files (
	file_path            TEXT PRIMARY KEY,
	content_key          TEXT NOT NULL,
	elements             INTEGER NOT NULL DEFAULT 0,
	conditional_elements INTEGER NOT NULL DEFAULT 0,
	updated_at           TEXT NOT NULL
)`

const createSelectorsTable = `
CREATE TABLE IF NOT EXISTS selectors (
	file_path  TEXT NOT NULL REFERENCES files(file_path) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	selector   TEXT NOT NULL,
	line       INTEGER NOT NULL,
	hash       TEXT NOT NULL DEFAULT '',
	inner_text TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (file_path, position)
)`

const createCacheMetadataTable = `
CREATE TABLE IF NOT EXISTS cache_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const createSelectorIndex = `CREATE INDEX IF NOT EXISTS idx_selectors_selector ON selectors(selector)`

// CreateSchema creates the cache tables and records the schema version.
// Uses a transaction so schema creation succeeds or fails as a whole.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"files", createFilesTable},
		{"selectors", createSelectorsTable},
		{"cache_metadata", createCacheMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	if _, err := tx.Exec(createSelectorIndex); err != nil {
		return fmt.Errorf("failed to create selector index: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	bootstrapSQL := `
		INSERT INTO cache_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('last_generated', '', ?)
		ON CONFLICT(key) DO NOTHING
	`
	if _, err := tx.Exec(bootstrapSQL, SchemaVersion, now, now); err != nil {
		return fmt.Errorf("failed to bootstrap cache_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// DropSchema removes every cache table.
func DropSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin drop transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"selectors", "files", "cache_metadata"} {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drop transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion retrieves the schema version from cache_metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cache_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check cache_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM cache_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in cache_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// SetMetadata sets or updates a cache_metadata key.
func SetMetadata(db *sql.DB, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO cache_metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, key, value, now); err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}

// GetMetadata reads a cache_metadata key. Missing keys return "".
func GetMetadata(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM cache_metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", key, err)
	}
	return value, nil
}
