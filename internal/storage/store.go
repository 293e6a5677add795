// Package storage persists per-file extraction results in a SQLite cache so
// unchanged component files are not re-parsed across generator runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/see-the-code/internal/codemap"
)

// DBFileName is the cache database name inside the cache directory.
const DBFileName = "cache.db"

// FileRecord is the cached extraction result of one file.
type FileRecord struct {
	Path                string
	ContentKey          string // fingerprint of file content and extraction options
	Entries             []codemap.Entry
	Elements            int
	ConditionalElements int
	UpdatedAt           time.Time
}

// Store is a SQLite-backed file result cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path. Use ":memory:"
// for a throwaway cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps per-connection pragmas and :memory: databases
	// consistent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	if version != "0" && version != SchemaVersion {
		if err := DropSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		version = "0"
	}

	if version == "0" {
		if err := CreateSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// OpenDir opens the cache database inside cacheDir.
func OpenDir(cacheDir string) (*Store, error) {
	return Open(filepath.Join(cacheDir, DBFileName))
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached record for path when its content key still matches.
func (s *Store) Get(ctx context.Context, path, contentKey string) (*FileRecord, bool, error) {
	rec := &FileRecord{Path: path}
	var updatedAt string

	err := sq.Select("content_key", "elements", "conditional_elements", "updated_at").
		From("files").
		Where(sq.Eq{"file_path": path}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&rec.ContentKey, &rec.Elements, &rec.ConditionalElements, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached file %s: %w", path, err)
	}
	if rec.ContentKey != contentKey {
		return nil, false, nil
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	rows, err := sq.Select("selector", "line", "hash", "inner_text").
		From("selectors").
		Where(sq.Eq{"file_path": path}).
		OrderBy("position").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached selectors for %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		e := codemap.Entry{Record: codemap.Record{File: path}}
		if err := rows.Scan(&e.Key, &e.Record.Line, &e.Record.Hash, &e.Record.InnerText); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached selector for %s: %w", path, err)
		}
		rec.Entries = append(rec.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read cached selectors for %s: %w", path, err)
	}

	return rec, true, nil
}

// Put writes or replaces the cached record for rec.Path.
func (s *Store) Put(ctx context.Context, rec *FileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replacing the file row cascades to its selectors.
	_, err = sq.Delete("files").
		Where(sq.Eq{"file_path": rec.Path}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to clear cached file %s: %w", rec.Path, err)
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = sq.Insert("files").
		Columns("file_path", "content_key", "elements", "conditional_elements", "updated_at").
		Values(rec.Path, rec.ContentKey, rec.Elements, rec.ConditionalElements, updatedAt.UTC().Format(time.RFC3339)).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to write cached file %s: %w", rec.Path, err)
	}

	if len(rec.Entries) > 0 {
		// Build the query once with Squirrel, then prepare it for the batch
		sqlStr, _, err := sq.Insert("selectors").
			Columns("file_path", "position", "selector", "line", "hash", "inner_text").
			Values("", 0, "", 0, "", "").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, sqlStr)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, e := range rec.Entries {
			if _, err := stmt.ExecContext(ctx, rec.Path, i, e.Key, e.Record.Line, e.Record.Hash, e.Record.InnerText); err != nil {
				return fmt.Errorf("failed to insert selector %s for %s: %w", e.Key, rec.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cached file %s: %w", rec.Path, err)
	}
	return nil
}

// Delete removes the cached record for path.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := sq.Delete("files").
		Where(sq.Eq{"file_path": path}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete cached file %s: %w", path, err)
	}
	return nil
}

// Prune removes every cached file not in keep and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep []string) (int, error) {
	res, err := sq.Delete("files").
		Where(sq.NotEq{"file_path": keep}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return int(n), nil
}

// Files lists cached file paths in lexicographic order.
func (s *Store) Files(ctx context.Context) ([]string, error) {
	rows, err := sq.Select("file_path").
		From("files").
		OrderBy("file_path").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan cached file: %w", err)
		}
		files = append(files, path)
	}
	return files, rows.Err()
}

// MarkGenerated records the time of the last successful generation.
func (s *Store) MarkGenerated(t time.Time) error {
	return SetMetadata(s.db, "last_generated", t.UTC().Format(time.RFC3339))
}

// LastGenerated returns the time of the last successful generation, or the
// zero time if none was recorded.
func (s *Store) LastGenerated() (time.Time, error) {
	value, err := GetMetadata(s.db, "last_generated")
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last_generated value %q: %w", value, err)
	}
	return t, nil
}
