package generator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/extract"
	"github.com/mvp-joe/see-the-code/internal/storage"
)

// Test Plan for Generator:
// - Generate merges files in lexicographic order, first occurrence wins
// - Record paths are workspace relative with forward slashes
// - A file with a syntax error is reported as a failure, the rest still map
// - Duplicates are collected (and logged when enabled)
// - Output bytes are identical for one worker and many; colliding canonical
//   forms are won by the lexicographically first file
// - Cached results are reused for unchanged content and refreshed on change
// - Changing extraction options invalidates cached results
// - The SQLite cache serves a second generator over the same project
// - Progress callbacks see every file
// - Cancelled context aborts generation
// - Write saves a loadable code map

const (
	cardSrc = `export function Card() {
  return (
    <div className="card shared" id="card-root">
      <h2 className="card-title">Title</h2>
    </div>
  );
}
`
	listSrc = `export const List = () => (
  <ul className="list shared">
    <li data-testid="list-item">Item</li>
  </ul>
);
`
	brokenSrc = `export const Broken = () => <div className="broken"`
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/ui/Card.tsx", cardSrc)
	writeFile(t, root, "src/List.jsx", listSrc)
	return root
}

func testConfig(root string) Config {
	return Config{
		RootDir:          root,
		Inputs:           []string{"src"},
		Include:          []string{"**/*.tsx", "**/*.jsx"},
		Ignore:           []string{"node_modules/**", "**/*.test.*"},
		Extract:          extract.DefaultOptions(),
		Workers:          2,
		WarnOnDuplicates: true,
	}
}

func TestGenerate_MergesInFileOrder(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	gen, err := New(testConfig(root))
	require.NoError(t, err)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"src/List.jsx", "src/ui/Card.tsx"}, result.Files)
	assert.Equal(t, 2, result.Processed)
	assert.Empty(t, result.Failures)

	// src/List.jsx sorts first, so its keys lead and it owns ".shared".
	keys := result.CodeMap.Keys()
	require.NotEmpty(t, keys)
	assert.Equal(t, "ul", keys[0])

	shared, ok := result.CodeMap.Get(".shared")
	require.True(t, ok)
	assert.Equal(t, "src/List.jsx", shared.File)
	assert.Equal(t, 2, shared.Line)

	title, ok := result.CodeMap.Get(".card-title")
	require.True(t, ok)
	assert.Equal(t, codemap.Record{File: "src/ui/Card.tsx", Line: 4, InnerText: "Title"}, title)

	item, ok := result.CodeMap.Get(`[data-testid="list-item"]`)
	require.True(t, ok)
	assert.Equal(t, 3, item.Line)

	require.NotEmpty(t, result.Duplicates)
	var dupKeys []string
	for _, d := range result.Duplicates {
		dupKeys = append(dupKeys, d.Key)
	}
	assert.Equal(t, []string{".shared"}, dupKeys)
}

func TestGenerate_DeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	const files = 32
	root := t.TempDir()
	owners := map[string]string{}
	var paths []string
	for i := files - 1; i >= 0; i-- {
		dir := "src/b"
		if i%2 == 1 {
			dir = "src/a"
		}
		rel := fmt.Sprintf("%s/c%02d.tsx", dir, i)
		variant := "Shared"
		if i%3 == 0 {
			variant = "SHARED"
		}
		src := fmt.Sprintf(`export const C%d = () => (
  <div className="shared group-%d own-%d">
    <span className="%s cell">Cell %d</span>
  </div>
);
`, i, i%4, i, variant, i)
		writeFile(t, root, rel, src)
		paths = append(paths, rel)
		owners[fmt.Sprintf(".group-%d", i%4)] = ""
	}
	sort.Strings(paths)
	for key := range owners {
		for _, rel := range paths {
			var i int
			_, err := fmt.Sscanf(filepath.Base(rel), "c%02d.tsx", &i)
			require.NoError(t, err)
			if fmt.Sprintf(".group-%d", i%4) == key {
				owners[key] = rel
				break
			}
		}
	}

	run := func(workers int) (*Result, []byte) {
		cfg := testConfig(root)
		cfg.Workers = workers
		gen, err := New(cfg)
		require.NoError(t, err)
		result, err := gen.Generate(context.Background())
		require.NoError(t, err)
		require.Empty(t, result.Failures)
		var buf bytes.Buffer
		require.NoError(t, codemap.Encode(&buf, result.CodeMap))
		return result, buf.Bytes()
	}

	serial, serialBytes := run(1)
	for _, workers := range []int{4, 8, 16} {
		parallel, parallelBytes := run(workers)
		assert.Equal(t, string(serialBytes), string(parallelBytes), "workers=%d", workers)
		assert.Equal(t, serial.Files, parallel.Files)
		assert.Equal(t, serial.Duplicates, parallel.Duplicates)
	}

	assert.Equal(t, paths, serial.Files)
	first := paths[0]

	shared, ok := serial.CodeMap.Get(".shared")
	require.True(t, ok)
	assert.Equal(t, first, shared.File)
	assert.False(t, serial.CodeMap.Has(".Shared"))
	assert.False(t, serial.CodeMap.Has(".SHARED"))

	cell, ok := serial.CodeMap.Get(".cell")
	require.True(t, ok)
	assert.Equal(t, codemap.Record{File: first, Line: 3, InnerText: "Cell 1"}, cell)

	for key, owner := range owners {
		rec, ok := serial.CodeMap.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, owner, rec.File, key)
	}
}

func TestGenerate_WorkspaceRelativePaths(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	cfg := testConfig(root)
	cfg.WorkspaceRoot = "src"

	gen, err := New(cfg)
	require.NoError(t, err)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"List.jsx", "ui/Card.tsx"}, result.Files)

	rec, ok := result.CodeMap.Get("#card-root")
	require.True(t, ok)
	assert.Equal(t, "ui/Card.tsx", rec.File)
}

func TestGenerate_ParseFailureIsScopedToFile(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	writeFile(t, root, "src/Broken.tsx", brokenSrc)

	gen, err := New(testConfig(root))
	require.NoError(t, err)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "src/Broken.tsx", result.Failures[0].Path)
	var parseErr *extract.ParseError
	assert.ErrorAs(t, result.Failures[0].Err, &parseErr)

	assert.Equal(t, 2, result.Processed)
	assert.True(t, result.CodeMap.Has(".card"))
	assert.False(t, result.CodeMap.Has(".broken"))
}

func TestGenerate_EmptyProject(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gen, err := New(testConfig(root))
	require.NoError(t, err)

	result, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.CodeMap.Len())
	assert.Empty(t, result.Files)
}

type countingCache struct {
	mu      sync.Mutex
	inner   Cache
	lookups int
	stores  int
}

func (c *countingCache) Lookup(ctx context.Context, path, key string) (*extract.FileSelectors, bool, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.inner.Lookup(ctx, path, key)
}

func (c *countingCache) Store(ctx context.Context, path, key string, fs *extract.FileSelectors) error {
	c.mu.Lock()
	c.stores++
	c.mu.Unlock()
	return c.inner.Store(ctx, path, key, fs)
}

func TestGenerate_ReusesCache(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	mem, err := NewMemoryCache(0)
	require.NoError(t, err)
	defer mem.Close()

	gen, err := New(testConfig(root), WithCache(mem))
	require.NoError(t, err)

	first, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.Cached)

	second, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Cached)
	assert.True(t, first.CodeMap.Equal(second.CodeMap))

	writeFile(t, root, "src/List.jsx", `export const List = () => <ol className="ordered" />;`)

	third, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Cached)
	assert.True(t, third.CodeMap.Has(".ordered"))
	assert.False(t, third.CodeMap.Has(".list"))
}

func TestGenerate_OptionsInvalidateCache(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	mem, err := NewMemoryCache(0)
	require.NoError(t, err)
	defer mem.Close()

	gen, err := New(testConfig(root), WithCache(mem))
	require.NoError(t, err)
	_, err = gen.Generate(context.Background())
	require.NoError(t, err)

	cfg := testConfig(root)
	cfg.Extract.IncludeHashes = true
	hashed, err := New(cfg, WithCache(mem))
	require.NoError(t, err)

	result, err := hashed.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cached)

	rec, ok := result.CodeMap.Get(".card")
	require.True(t, ok)
	assert.Len(t, rec.Hash, 16)
}

func TestGenerate_StoreCacheAcrossRuns(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	store, err := storage.OpenDir(filepath.Join(root, ".see-the-code"))
	require.NoError(t, err)
	defer store.Close()

	counting := &countingCache{inner: &StoreCache{Backend: store}}

	gen, err := New(testConfig(root), WithCache(counting))
	require.NoError(t, err)
	first, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counting.stores)

	mem, err := NewMemoryCache(0)
	require.NoError(t, err)
	defer mem.Close()

	again, err := New(testConfig(root), WithCache(Tiered{mem, &StoreCache{Backend: store}}))
	require.NoError(t, err)
	second, err := again.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, second.Cached)
	assert.True(t, first.CodeMap.Equal(second.CodeMap))
	assert.Equal(t, 2, mem.Len(), "memory tier is back-filled")
}

type recordingProgress struct {
	NoOpProgressReporter
	mu        sync.Mutex
	total     int
	processed []string
	completed bool
}

func (r *recordingProgress) OnFileProcessingStart(total int) { r.total = total }

func (r *recordingProgress) OnFileProcessed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, name)
}

func (r *recordingProgress) OnComplete(*Result) { r.completed = true }

func TestGenerate_ReportsProgress(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	progress := &recordingProgress{}

	gen, err := New(testConfig(root), WithProgress(progress))
	require.NoError(t, err)
	_, err = gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, progress.total)
	assert.ElementsMatch(t, []string{"src/List.jsx", "src/ui/Card.tsx"}, progress.processed)
	assert.True(t, progress.completed)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	gen, err := New(testConfig(root))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gen.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	gen, err := New(testConfig(root))
	require.NoError(t, err)
	result, err := gen.Generate(context.Background())
	require.NoError(t, err)

	out := filepath.Join(root, "out", "code-map.json")
	require.NoError(t, Write(out, result))

	loaded, err := codemap.Load(out)
	require.NoError(t, err)
	assert.True(t, result.CodeMap.Equal(loaded))
	assert.Equal(t, result.CodeMap.Keys(), loaded.Keys())
}
