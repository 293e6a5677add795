package mcp

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/selector"
)

const (
	defaultSearchLimit = 15
	maxSearchLimit     = 100
)

// SearchOptions filters a selector search.
type SearchOptions struct {
	Limit int
	Kind  string // class, id, data or element
	File  string // wildcard over the record file path, e.g. "src/ui/*"
}

// SearchResult is one selector hit.
type SearchResult struct {
	Selector   string         `json:"selector"`
	Kind       string         `json:"kind"`
	Record     codemap.Record `json:"record"`
	Score      float64        `json:"score"`
	Highlights []string       `json:"highlights,omitempty"`
}

// selectorIndex is a bleve full-text index over selector keys, files and
// innerText. It is immutable once built; reloads build a new one.
type selectorIndex struct {
	index bleve.Index
}

// newSelectorIndex builds an in-memory index over cm.
func newSelectorIndex(ctx context.Context, cm *codemap.CodeMap) (*selectorIndex, error) {
	index, err := bleve.NewMemOnly(buildBleveMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	if err := indexEntries(ctx, index, cm.Entries()); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to index selectors: %w", err)
	}

	return &selectorIndex{index: index}, nil
}

// buildBleveMapping creates the index mapping for selector documents.
func buildBleveMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	// Selector key - standard analyzer splits "primary-button" into terms
	selectorMapping := bleve.NewTextFieldMapping()
	selectorMapping.Analyzer = "standard"
	selectorMapping.Store = true
	selectorMapping.IncludeTermVectors = true

	// Canonical token, so camelCase keys are found by their kebab-case words
	tokenMapping := bleve.NewTextFieldMapping()
	tokenMapping.Analyzer = "standard"
	tokenMapping.Store = false

	// Kind (filterable) - keyword analyzer for exact matching
	kindMapping := bleve.NewTextFieldMapping()
	kindMapping.Analyzer = "keyword"
	kindMapping.Store = true
	kindMapping.IncludeInAll = false

	// File path - standard for free text, keyword copy for wildcard filters
	fileMapping := bleve.NewTextFieldMapping()
	fileMapping.Analyzer = "standard"
	fileMapping.Store = true

	filePathMapping := bleve.NewTextFieldMapping()
	filePathMapping.Analyzer = "keyword"
	filePathMapping.Store = false
	filePathMapping.IncludeInAll = false

	innerTextMapping := bleve.NewTextFieldMapping()
	innerTextMapping.Analyzer = "standard"
	innerTextMapping.Store = true
	innerTextMapping.IncludeTermVectors = true

	lineMapping := bleve.NewNumericFieldMapping()
	lineMapping.Store = true
	lineMapping.IncludeInAll = false

	hashMapping := bleve.NewTextFieldMapping()
	hashMapping.Analyzer = "keyword"
	hashMapping.Store = true
	hashMapping.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("selector", selectorMapping)
	docMapping.AddFieldMappingsAt("token", tokenMapping)
	docMapping.AddFieldMappingsAt("kind", kindMapping)
	docMapping.AddFieldMappingsAt("file", fileMapping)
	docMapping.AddFieldMappingsAt("file_path", filePathMapping)
	docMapping.AddFieldMappingsAt("inner_text", innerTextMapping)
	docMapping.AddFieldMappingsAt("line", lineMapping)
	docMapping.AddFieldMappingsAt("hash", hashMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// indexEntries adds entries to the bleve index in batches.
func indexEntries(ctx context.Context, index bleve.Index, entries []codemap.Entry) error {
	const batchSize = 1000

	batch := index.NewBatch()
	for i, e := range entries {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := batch.Index(e.Key, entryToDocument(e)); err != nil {
			return fmt.Errorf("failed to add selector %s to batch: %w", e.Key, err)
		}

		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

func entryToDocument(e codemap.Entry) map[string]any {
	return map[string]any{
		"selector":   e.Key,
		"token":      selector.Canonical(e.Key),
		"kind":       selector.KindOf(e.Key).String(),
		"file":       e.Record.File,
		"file_path":  e.Record.File,
		"inner_text": e.Record.InnerText,
		"line":       float64(e.Record.Line),
		"hash":       e.Record.Hash,
	}
}

// Search executes a bleve query string search with optional filters.
func (s *selectorIndex) Search(ctx context.Context, queryStr string, opts SearchOptions) ([]*SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}

	if opts.Kind != "" {
		kindQuery := bleve.NewTermQuery(opts.Kind)
		kindQuery.SetField("kind")
		queries = append(queries, kindQuery)
	}

	if opts.File != "" {
		pathQuery := bleve.NewWildcardQuery(opts.File)
		pathQuery.SetField("file_path")
		queries = append(queries, pathQuery)
	}

	var finalQuery query.Query
	if len(queries) == 1 {
		finalQuery = queries[0]
	} else {
		finalQuery = bleve.NewConjunctionQuery(queries...)
	}

	searchRequest := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)
	highlightStyle := "html"
	searchRequest.Highlight = bleve.NewHighlight()
	searchRequest.Highlight.Style = &highlightStyle
	searchRequest.Highlight.Fields = []string{"selector", "inner_text"}
	searchRequest.Fields = []string{"selector", "kind", "file", "inner_text", "line", "hash"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]*SearchResult, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		key, _ := hit.Fields["selector"].(string)
		if key == "" {
			key = hit.ID
		}
		kind, _ := hit.Fields["kind"].(string)
		file, _ := hit.Fields["file"].(string)
		innerText, _ := hit.Fields["inner_text"].(string)
		hash, _ := hit.Fields["hash"].(string)
		line, _ := hit.Fields["line"].(float64)

		results = append(results, &SearchResult{
			Selector:   key,
			Kind:       kind,
			Record:     codemap.Record{File: file, Line: int(line), Hash: hash, InnerText: innerText},
			Score:      hit.Score,
			Highlights: extractHighlights(hit.Fragments),
		})
	}

	return results, nil
}

// extractHighlights flattens bleve fragments, keeping at most 3.
func extractHighlights(fragments map[string][]string) []string {
	var highlights []string
	for _, snippets := range fragments {
		highlights = append(highlights, snippets...)
	}
	if len(highlights) > 3 {
		highlights = highlights[:3]
	}
	return highlights
}

// Close releases the index.
func (s *selectorIndex) Close() error {
	return s.index.Close()
}
