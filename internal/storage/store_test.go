package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/see-the-code/internal/codemap"
)

// Test Plan for Store:
// - Open creates the schema and records the schema version
// - Put then Get returns entries in their original order
// - Get misses when the content key changed
// - Get misses for unknown files
// - Put replaces the previous selectors of a file
// - Delete and Prune remove files and cascade to selectors
// - Files lists paths in lexicographic order
// - Reopening a file-backed cache keeps its contents
// - A cache with a foreign schema version is rebuilt
// - MarkGenerated round-trips through cache_metadata

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(path, key string) *FileRecord {
	return &FileRecord{
		Path:       path,
		ContentKey: key,
		Entries: []codemap.Entry{
			{Key: "div", Record: codemap.Record{File: path, Line: 3}},
			{Key: ".card", Record: codemap.Record{File: path, Line: 3, Hash: "abc123", InnerText: "Hello"}},
			{Key: "#root", Record: codemap.Record{File: path, Line: 1}},
		},
		Elements:            4,
		ConditionalElements: 1,
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	version, err := GetSchemaVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	rec := sampleRecord("src/Card.tsx", "k1")
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err := s.Get(ctx, "src/Card.tsx", "k1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, rec.Entries, got.Entries)
	assert.Equal(t, 4, got.Elements)
	assert.Equal(t, 1, got.ConditionalElements)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_GetMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Put(ctx, sampleRecord("src/Card.tsx", "k1")))

	_, ok, err := s.Get(ctx, "src/Card.tsx", "k2")
	require.NoError(t, err)
	assert.False(t, ok, "stale content key must miss")

	_, ok, err = s.Get(ctx, "src/Other.tsx", "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Put(ctx, sampleRecord("src/Card.tsx", "k1")))

	updated := &FileRecord{
		Path:       "src/Card.tsx",
		ContentKey: "k2",
		Entries:    []codemap.Entry{{Key: "span", Record: codemap.Record{File: "src/Card.tsx", Line: 9}}},
	}
	require.NoError(t, s.Put(ctx, updated))

	got, ok, err := s.Get(ctx, "src/Card.tsx", "k2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updated.Entries, got.Entries)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM selectors").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_DeleteAndPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	for _, p := range []string{"src/a.tsx", "src/b.tsx", "src/c.tsx"} {
		require.NoError(t, s.Put(ctx, sampleRecord(p, "k")))
	}

	require.NoError(t, s.Delete(ctx, "src/a.tsx"))

	removed, err := s.Prune(ctx, []string{"src/b.tsx"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	files, err := s.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/b.tsx"}, files)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM selectors").Scan(&count))
	assert.Equal(t, 3, count, "selectors of removed files cascade")

	removed, err = s.Prune(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStore_FilesSorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	for _, p := range []string{"src/z.tsx", "src/a.tsx", "lib/m.jsx"} {
		require.NoError(t, s.Put(ctx, sampleRecord(p, "k")))
	}

	files, err := s.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/m.jsx", "src/a.tsx", "src/z.tsx"}, files)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenDir(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("src/Card.tsx", "k1")))
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, DBFileName))

	s, err = OpenDir(dir)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "src/Card.tsx", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_RebuildsForeignSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DBFileName)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("src/Card.tsx", "k1")))
	require.NoError(t, SetMetadata(s.DB(), "schema_version", "0.9"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := GetSchemaVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	files, err := s.Files(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGetSchemaVersion_NewDatabase(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, "0", version)
}

func TestStore_MarkGenerated(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	last, err := s.LastGenerated()
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkGenerated(now))

	last, err = s.LastGenerated()
	require.NoError(t, err)
	assert.True(t, now.Equal(last))
}
