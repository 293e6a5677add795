package mcp

// Implementation Plan:
// 1. Index loads the code map file and builds a matcher and a bleve index over it
// 2. Reload builds the replacements first and swaps them under the lock
// 3. A failed reload keeps the previous state
// 4. Lookup falls back to canonical identity when the literal key is absent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/match"
	"github.com/mvp-joe/see-the-code/internal/selector"
)

// Reloadable is an interface for components that can be reloaded.
type Reloadable interface {
	Reload(ctx context.Context) error
}

// Index is the queryable state behind the MCP tools.
type Index struct {
	path      string
	matchOpts match.Options
	logger    *slog.Logger

	mu       sync.RWMutex
	codeMap  *codemap.CodeMap
	matcher  *match.Matcher
	search   *selectorIndex
	loadedAt time.Time
}

// NewIndex loads the code map at path.
func NewIndex(ctx context.Context, path string, opts match.Options, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger

	idx := &Index{path: path, matchOpts: opts, logger: logger}
	if err := idx.Reload(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// NewIndexFromCodeMap builds an index over an in-memory code map. Reload
// is a no-op for such an index.
func NewIndexFromCodeMap(ctx context.Context, cm *codemap.CodeMap, opts match.Options) (*Index, error) {
	idx := &Index{matchOpts: opts, logger: slog.Default()}
	if err := idx.swap(ctx, cm); err != nil {
		return nil, err
	}
	return idx, nil
}

// Path returns the code map file the index was loaded from.
func (i *Index) Path() string {
	return i.path
}

// Reload re-reads the code map file.
func (i *Index) Reload(ctx context.Context) error {
	if i.path == "" {
		return nil
	}
	cm, err := codemap.Load(i.path)
	if err != nil {
		return fmt.Errorf("failed to load code map: %w", err)
	}
	if err := i.swap(ctx, cm); err != nil {
		return err
	}
	i.logger.Info("code map loaded", "path", i.path, "selectors", cm.Len())
	return nil
}

func (i *Index) swap(ctx context.Context, cm *codemap.CodeMap) error {
	search, err := newSelectorIndex(ctx, cm)
	if err != nil {
		return err
	}
	matcher := match.New(cm, i.matchOpts)

	i.mu.Lock()
	old := i.search
	i.codeMap = cm
	i.matcher = matcher
	i.search = search
	i.loadedAt = time.Now()
	i.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			i.logger.Warn("failed to close previous search index", "error", err)
		}
	}
	return nil
}

// Len returns the number of selectors loaded.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.codeMap.Len()
}

// LoadedAt returns when the current code map was loaded.
func (i *Index) LoadedAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.loadedAt
}

// LookupResult is the outcome of Lookup.
type LookupResult struct {
	Selector  string          `json:"selector"`
	Found     bool            `json:"found"`
	MatchedBy string          `json:"matched_by,omitempty"` // exact or canonical
	Key       string          `json:"key,omitempty"`
	Record    *codemap.Record `json:"record,omitempty"`
}

// Lookup finds the record for a selector key. When the literal key is absent
// the first key with the same canonical identity is returned, so
// ".saveButton" finds ".save-button".
func (i *Index) Lookup(key string) LookupResult {
	i.mu.RLock()
	defer i.mu.RUnlock()

	res := LookupResult{Selector: key}
	if rec, ok := i.codeMap.Get(key); ok {
		res.Found, res.MatchedBy, res.Key, res.Record = true, "exact", key, &rec
		return res
	}

	want := selector.IdentityOf(key)
	if want.Kind == selector.KindInvalid {
		return res
	}
	i.codeMap.Each(func(k string, rec codemap.Record) bool {
		if selector.IdentityOf(k) != want {
			return true
		}
		res.Found, res.MatchedBy, res.Key, res.Record = true, "canonical", k, &rec
		return false
	})
	return res
}

// MatchHTML runs the tiered matcher on the first element of snippet.
func (i *Index) MatchHTML(snippet string) (match.Result, bool, error) {
	i.mu.RLock()
	matcher := i.matcher
	i.mu.RUnlock()
	return matcher.MatchHTML(snippet)
}

// Search runs a full-text query over the loaded selectors.
func (i *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.search.Search(ctx, query, opts)
}

// Close releases the search index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.search == nil {
		return nil
	}
	err := i.search.Close()
	i.search = nil
	return err
}
