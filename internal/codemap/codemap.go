// Package codemap holds the code map: an insertion-ordered mapping from
// selector key to the source location that introduced it.
package codemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is the source location of a selector.
type Record struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Hash      string `json:"hash,omitempty"`
	InnerText string `json:"innerText,omitempty"`
}

// String renders the record as file:line.
func (r Record) String() string {
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}

// Entry is a single key/record pair, used for per-file selector lists whose
// order matters.
type Entry struct {
	Key    string
	Record Record
}

// CodeMap maps selector keys to records. Iteration follows insertion order,
// which is also the order keys are written to JSON.
type CodeMap struct {
	entries *orderedmap.OrderedMap[string, Record]
}

// New returns an empty code map.
func New() *CodeMap {
	return &CodeMap{entries: orderedmap.New[string, Record]()}
}

// FromEntries builds a code map from entries. Later duplicates of a key
// overwrite the record but keep the first position.
func FromEntries(entries []Entry) *CodeMap {
	cm := New()
	for _, e := range entries {
		cm.Set(e.Key, e.Record)
	}
	return cm
}

// Set stores a record under key.
func (cm *CodeMap) Set(key string, rec Record) {
	cm.init()
	cm.entries.Set(key, rec)
}

// Get returns the record stored under key.
func (cm *CodeMap) Get(key string) (Record, bool) {
	if cm == nil || cm.entries == nil {
		return Record{}, false
	}
	return cm.entries.Get(key)
}

// Has reports whether key is present.
func (cm *CodeMap) Has(key string) bool {
	_, ok := cm.Get(key)
	return ok
}

// Len returns the number of keys.
func (cm *CodeMap) Len() int {
	if cm == nil || cm.entries == nil {
		return 0
	}
	return cm.entries.Len()
}

// Keys returns the keys in insertion order.
func (cm *CodeMap) Keys() []string {
	keys := make([]string, 0, cm.Len())
	cm.Each(func(key string, _ Record) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Entries returns all pairs in insertion order.
func (cm *CodeMap) Entries() []Entry {
	out := make([]Entry, 0, cm.Len())
	cm.Each(func(key string, rec Record) bool {
		out = append(out, Entry{Key: key, Record: rec})
		return true
	})
	return out
}

// Each calls fn for every pair in insertion order until fn returns false.
func (cm *CodeMap) Each(fn func(key string, rec Record) bool) {
	if cm == nil || cm.entries == nil {
		return
	}
	for pair := cm.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Files returns the distinct files referenced by the map, in first-seen order.
func (cm *CodeMap) Files() []string {
	seen := make(map[string]bool)
	var files []string
	cm.Each(func(_ string, rec Record) bool {
		if !seen[rec.File] {
			seen[rec.File] = true
			files = append(files, rec.File)
		}
		return true
	})
	return files
}

// Equal reports whether two maps hold the same pairs in the same order.
func (cm *CodeMap) Equal(other *CodeMap) bool {
	if cm.Len() != other.Len() {
		return false
	}
	a, b := cm.Entries(), other.Entries()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (cm *CodeMap) init() {
	if cm.entries == nil {
		cm.entries = orderedmap.New[string, Record]()
	}
}

// MarshalJSON writes the map as a flat JSON object in insertion order.
func (cm *CodeMap) MarshalJSON() ([]byte, error) {
	if cm == nil || cm.entries == nil || cm.entries.Len() == 0 {
		return []byte("{}"), nil
	}
	return cm.entries.MarshalJSON()
}

// UnmarshalJSON reads a flat JSON object, keeping document order.
func (cm *CodeMap) UnmarshalJSON(data []byte) error {
	cm.entries = orderedmap.New[string, Record]()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return cm.entries.UnmarshalJSON(data)
}

// Encode writes the map as indented JSON followed by a newline.
func Encode(w io.Writer, cm *CodeMap) error {
	data, err := json.MarshalIndent(cm, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal code map: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Decode reads a code map from r.
func Decode(r io.Reader) (*CodeMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read code map: %w", err)
	}
	cm := New()
	if err := json.Unmarshal(data, cm); err != nil {
		return nil, fmt.Errorf("failed to parse code map: %w", err)
	}
	return cm, nil
}

// Save writes the map to path, creating parent directories as needed.
func Save(path string, cm *CodeMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, cm); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write code map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write code map: %w", err)
	}
	return nil
}

// Load reads the map stored at path.
func Load(path string) (*CodeMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
