package codemap

import (
	"sort"

	"github.com/mvp-joe/see-the-code/internal/selector"
)

// FileEntries is the ordered selector list extracted from one file.
type FileEntries struct {
	Path    string
	Entries []Entry
}

// Duplicate describes a key dropped because an earlier key had the same
// kind and canonical form.
type Duplicate struct {
	Key     string
	Record  Record
	KeptKey string
	Kept    Record
}

// Aggregator folds per-file selector lists into one code map. The first
// occurrence of each selector identity wins. Add must be called in canonical
// file order and from a single goroutine.
type Aggregator struct {
	codeMap     *CodeMap
	seen        map[selector.Identity]string
	duplicates  []Duplicate
	onDuplicate func(Duplicate)
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithDuplicateHandler registers a callback invoked for each dropped key.
func WithDuplicateHandler(fn func(Duplicate)) AggregatorOption {
	return func(a *Aggregator) {
		a.onDuplicate = fn
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		codeMap: New(),
		seen:    make(map[selector.Identity]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add folds one file's entries into the map in their emitted order.
func (a *Aggregator) Add(entries []Entry) {
	for _, e := range entries {
		id := selector.IdentityOf(e.Key)
		if keptKey, ok := a.seen[id]; ok {
			kept, _ := a.codeMap.Get(keptKey)
			dup := Duplicate{Key: e.Key, Record: e.Record, KeptKey: keptKey, Kept: kept}
			a.duplicates = append(a.duplicates, dup)
			if a.onDuplicate != nil {
				a.onDuplicate(dup)
			}
			continue
		}
		a.seen[id] = e.Key
		a.codeMap.Set(e.Key, e.Record)
	}
}

// Duplicates returns every key dropped so far, in encounter order.
func (a *Aggregator) Duplicates() []Duplicate {
	return a.duplicates
}

// CodeMap returns the aggregated map.
func (a *Aggregator) CodeMap() *CodeMap {
	return a.codeMap
}

// SortFiles orders per-file results by path, the canonical merge order.
func SortFiles(files []FileEntries) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
}

// Aggregate sorts files into canonical order and merges them. The input slice
// is not modified.
func Aggregate(files []FileEntries, opts ...AggregatorOption) (*CodeMap, []Duplicate) {
	ordered := make([]FileEntries, len(files))
	copy(ordered, files)
	SortFiles(ordered)

	a := NewAggregator(opts...)
	for _, f := range ordered {
		a.Add(f.Entries)
	}
	return a.CodeMap(), a.Duplicates()
}
