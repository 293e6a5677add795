package mcp

// Test Plan for Index:
// - Lookup finds exact keys and reports matched_by "exact"
// - Lookup falls back to canonical identity (.saveButton -> .save-button)
// - Lookup misses unknown and invalid keys
// - Search matches selector words, innerText phrases and kebab-case tokens
// - Search filters by kind and by file wildcard, and clamps the limit
// - Reload picks up a rewritten code map and keeps old state on failure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/match"
)

func testCodeMap() *codemap.CodeMap {
	return codemap.FromEntries([]codemap.Entry{
		{Key: "#todo-root", Record: codemap.Record{File: "src/App.tsx", Line: 10}},
		{Key: ".todo-list", Record: codemap.Record{File: "src/TodoList.tsx", Line: 12}},
		{Key: "button", Record: codemap.Record{File: "src/ui/Button.tsx", Line: 5, InnerText: "Save changes"}},
		{Key: ".save-button", Record: codemap.Record{File: "src/ui/Button.tsx", Line: 5, InnerText: "Save changes"}},
		{Key: `[data-testid="add-todo"]`, Record: codemap.Record{File: "src/AddTodo.tsx", Line: 7}},
	})
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndexFromCodeMap(context.Background(), testCodeMap(), match.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_Lookup(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	tests := []struct {
		name      string
		selector  string
		found     bool
		matchedBy string
		key       string
		line      int
	}{
		{"exact class", ".todo-list", true, "exact", ".todo-list", 12},
		{"exact data", `[data-testid="add-todo"]`, true, "exact", `[data-testid="add-todo"]`, 7},
		{"canonical class", ".saveButton", true, "canonical", ".save-button", 5},
		{"canonical id", "#TodoRoot", true, "canonical", "#todo-root", 10},
		{"kind differs", "#todo-list", false, "", "", 0},
		{"unknown", ".missing", false, "", "", 0},
		{"invalid", "[broken", false, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := idx.Lookup(tt.selector)
			assert.Equal(t, tt.selector, res.Selector)
			assert.Equal(t, tt.found, res.Found)
			assert.Equal(t, tt.matchedBy, res.MatchedBy)
			assert.Equal(t, tt.key, res.Key)
			if tt.found {
				require.NotNil(t, res.Record)
				assert.Equal(t, tt.line, res.Record.Line)
			} else {
				assert.Nil(t, res.Record)
			}
		})
	}
}

func resultKeys(results []*SearchResult) []string {
	keys := make([]string, 0, len(results))
	for _, r := range results {
		keys = append(keys, r.Selector)
	}
	return keys
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := newTestIndex(t)

	t.Run("selector words", func(t *testing.T) {
		results, err := idx.Search(ctx, "todo", SearchOptions{})
		require.NoError(t, err)
		assert.Contains(t, resultKeys(results), ".todo-list")
		assert.Contains(t, resultKeys(results), "#todo-root")
	})

	t.Run("inner text phrase", func(t *testing.T) {
		results, err := idx.Search(ctx, `inner_text:"save changes"`, SearchOptions{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"button", ".save-button"}, resultKeys(results))
		for _, r := range results {
			assert.Equal(t, "src/ui/Button.tsx", r.Record.File)
			assert.Equal(t, 5, r.Record.Line)
			assert.Equal(t, "Save changes", r.Record.InnerText)
		}
	})

	t.Run("kind filter", func(t *testing.T) {
		results, err := idx.Search(ctx, "todo", SearchOptions{Kind: "id"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "#todo-root", results[0].Selector)
		assert.Equal(t, "id", results[0].Kind)
	})

	t.Run("file filter", func(t *testing.T) {
		results, err := idx.Search(ctx, "save", SearchOptions{File: "src/ui/*"})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, r := range results {
			assert.Equal(t, "src/ui/Button.tsx", r.Record.File)
		}
	})

	t.Run("limit", func(t *testing.T) {
		results, err := idx.Search(ctx, "todo", SearchOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("no hits", func(t *testing.T) {
		results, err := idx.Search(ctx, "zebra", SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestIndex_Reload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "code-map.json")
	require.NoError(t, codemap.Save(path, testCodeMap()))

	idx, err := NewIndex(ctx, path, match.DefaultOptions(), nil)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 5, idx.Len())
	first := idx.LoadedAt()

	updated := codemap.FromEntries([]codemap.Entry{
		{Key: ".fresh", Record: codemap.Record{File: "src/Fresh.tsx", Line: 1}},
	})
	require.NoError(t, codemap.Save(path, updated))
	require.NoError(t, idx.Reload(ctx))

	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.LoadedAt().Before(first))
	assert.True(t, idx.Lookup(".fresh").Found)
	assert.False(t, idx.Lookup(".todo-list").Found)

	results, err := idx.Search(ctx, "fresh", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{".fresh"}, resultKeys(results))

	// A broken file keeps the previous state
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, idx.Reload(ctx))
	assert.True(t, idx.Lookup(".fresh").Found)
}

func TestNewIndex_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewIndex(context.Background(), filepath.Join(t.TempDir(), "nope.json"), match.DefaultOptions(), nil)
	assert.Error(t, err)
}
