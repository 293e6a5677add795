package codemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Aggregation:
// - First occurrence in lexicographic file order wins regardless of input order
// - Canonical duplicates collapse (camelCase vs kebab-case)
// - Same canonical form with different kinds does not collapse
// - Duplicate handler receives both occurrences
// - Keys within a file keep their emitted order

func TestAggregate_FirstFileWins(t *testing.T) {
	t.Parallel()

	fileA := FileEntries{Path: "src/A.tsx", Entries: []Entry{
		{Key: "#x", Record: Record{File: "src/A.tsx", Line: 4}},
	}}
	fileB := FileEntries{Path: "src/B.tsx", Entries: []Entry{
		{Key: "#x", Record: Record{File: "src/B.tsx", Line: 9}},
	}}

	// B is supplied first; canonical order still puts A first
	cm, dups := Aggregate([]FileEntries{fileB, fileA})

	rec, ok := cm.Get("#x")
	require.True(t, ok)
	assert.Equal(t, Record{File: "src/A.tsx", Line: 4}, rec)
	require.Len(t, dups, 1)
	assert.Equal(t, "src/B.tsx", dups[0].Record.File)
	assert.Equal(t, "src/A.tsx", dups[0].Kept.File)
}

func TestAggregate_CanonicalCollapse(t *testing.T) {
	t.Parallel()

	files := []FileEntries{
		{Path: "a.tsx", Entries: []Entry{
			{Key: ".activeButton", Record: Record{File: "a.tsx", Line: 1}},
			{Key: ".active-button", Record: Record{File: "a.tsx", Line: 2}},
			{Key: "#activeButton", Record: Record{File: "a.tsx", Line: 3}},
		}},
	}

	var reported []Duplicate
	cm, _ := Aggregate(files, WithDuplicateHandler(func(d Duplicate) {
		reported = append(reported, d)
	}))

	assert.Equal(t, []string{".activeButton", "#activeButton"}, cm.Keys())
	require.Len(t, reported, 1)
	assert.Equal(t, ".active-button", reported[0].Key)
	assert.Equal(t, ".activeButton", reported[0].KeptKey)
}

func TestAggregate_PreservesEmittedOrder(t *testing.T) {
	t.Parallel()

	files := []FileEntries{
		{Path: "z.tsx", Entries: []Entry{
			{Key: ".zeta", Record: Record{File: "z.tsx", Line: 1}},
			{Key: ".alpha", Record: Record{File: "z.tsx", Line: 2}},
		}},
		{Path: "m.tsx", Entries: []Entry{
			{Key: ".mid", Record: Record{File: "m.tsx", Line: 1}},
		}},
	}

	cm, dups := Aggregate(files)
	assert.Equal(t, []string{".mid", ".zeta", ".alpha"}, cm.Keys())
	assert.Empty(t, dups)

	// Input slice untouched
	assert.Equal(t, "z.tsx", files[0].Path)
}

func TestAggregator_Incremental(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Add([]Entry{{Key: "button", Record: Record{File: "a.tsx", Line: 1}}})
	a.Add([]Entry{{Key: "button", Record: Record{File: "b.tsx", Line: 5}}})

	rec, _ := a.CodeMap().Get("button")
	assert.Equal(t, "a.tsx", rec.File)
	assert.Len(t, a.Duplicates(), 1)
}
