package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/see-the-code/internal/extract"
	"github.com/mvp-joe/see-the-code/internal/storage"
)

// DefaultMemoryCacheSize bounds the number of files kept in memory.
const DefaultMemoryCacheSize = 10_000

// Cache stores per-file extraction results keyed by path and content key.
// Implementations must be safe for concurrent use.
type Cache interface {
	Lookup(ctx context.Context, path, contentKey string) (*extract.FileSelectors, bool, error)
	Store(ctx context.Context, path, contentKey string, fs *extract.FileSelectors) error
}

// contentKey fingerprints file content together with the options that
// shape extraction, so toggling an option invalidates cached results.
func contentKey(source []byte, opts extract.Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%t%t%t%t%t%t\x00",
		opts.ExtractElementTypes,
		opts.ExtractDataAttributes,
		opts.HandleDynamicClasses,
		opts.IncludeHashes,
		opts.IncludeInnerText,
		opts.TolerateSyntaxErrors,
	)
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	key    string
	result *extract.FileSelectors
}

// MemoryCache is an in-process cache backed by otter. It serves watch mode,
// where most files are unchanged between regenerations.
type MemoryCache struct {
	cache otter.Cache[string, memoryEntry]
}

// NewMemoryCache creates a cache holding up to capacity files.
func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCacheSize
	}
	c, err := otter.MustBuilder[string, memoryEntry](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory cache: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

// Lookup implements Cache.
func (m *MemoryCache) Lookup(_ context.Context, path, key string) (*extract.FileSelectors, bool, error) {
	e, ok := m.cache.Get(path)
	if !ok || e.key != key {
		return nil, false, nil
	}
	return e.result, true, nil
}

// Store implements Cache.
func (m *MemoryCache) Store(_ context.Context, path, key string, fs *extract.FileSelectors) error {
	m.cache.Set(path, memoryEntry{key: key, result: fs})
	return nil
}

// Len returns the number of cached files.
func (m *MemoryCache) Len() int {
	return m.cache.Size()
}

// Close releases the cache.
func (m *MemoryCache) Close() {
	m.cache.Close()
}

// StoreCache adapts the SQLite store to Cache.
type StoreCache struct {
	Backend *storage.Store
}

// Lookup implements Cache.
func (s *StoreCache) Lookup(ctx context.Context, path, key string) (*extract.FileSelectors, bool, error) {
	rec, ok, err := s.Backend.Get(ctx, path, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return &extract.FileSelectors{
		Path:                rec.Path,
		Entries:             rec.Entries,
		Elements:            rec.Elements,
		ConditionalElements: rec.ConditionalElements,
	}, true, nil
}

// Store implements Cache.
func (s *StoreCache) Store(ctx context.Context, path, key string, fs *extract.FileSelectors) error {
	return s.Backend.Put(ctx, &storage.FileRecord{
		Path:                path,
		ContentKey:          key,
		Entries:             fs.Entries,
		Elements:            fs.Elements,
		ConditionalElements: fs.ConditionalElements,
	})
}

// Tiered consults caches in order and back-fills earlier tiers on a hit in
// a later one.
type Tiered []Cache

// Lookup implements Cache.
func (t Tiered) Lookup(ctx context.Context, path, key string) (*extract.FileSelectors, bool, error) {
	for i, c := range t {
		fs, ok, err := c.Lookup(ctx, path, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			for _, earlier := range t[:i] {
				if err := earlier.Store(ctx, path, key, fs); err != nil {
					return nil, false, err
				}
			}
			return fs, true, nil
		}
	}
	return nil, false, nil
}

// Store implements Cache.
func (t Tiered) Store(ctx context.Context, path, key string, fs *extract.FileSelectors) error {
	for _, c := range t {
		if err := c.Store(ctx, path, key, fs); err != nil {
			return err
		}
	}
	return nil
}
