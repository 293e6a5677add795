// Package extract scans JSX/TSX component sources and records every
// selector an element could render, tagged with the line of the opening
// element that introduced it.
package extract

import (
	"fmt"

	"github.com/mvp-joe/see-the-code/internal/codemap"
)

// Options toggles optional extraction passes.
type Options struct {
	// ExtractElementTypes records lowercased tag names as element keys.
	ExtractElementTypes bool

	// ExtractDataAttributes records data-* attributes with literal values.
	ExtractDataAttributes bool

	// HandleDynamicClasses records member-access class names (styles.button)
	// and string literals inside template substitutions. Both are guesses at
	// the rendered class, so this is off by default.
	HandleDynamicClasses bool

	// IncludeHashes adds a content fingerprint to every record.
	IncludeHashes bool

	// IncludeInnerText records the static text of elements whose children
	// are text only.
	IncludeInnerText bool

	// TolerateSyntaxErrors extracts from the recoverable parts of a file
	// instead of failing it when the tree contains syntax errors.
	TolerateSyntaxErrors bool
}

// DefaultOptions mirrors the generator's default configuration.
func DefaultOptions() Options {
	return Options{
		ExtractElementTypes:   true,
		ExtractDataAttributes: true,
		IncludeInnerText:      true,
	}
}

// FileSelectors is the ordered selector list extracted from one file.
type FileSelectors struct {
	Path    string
	Entries []codemap.Entry

	// Elements counts the element nodes visited; ConditionalElements counts
	// those found inside a logical or ternary branch.
	Elements            int
	ConditionalElements int
}

// FileEntries converts the result for aggregation.
func (fs *FileSelectors) FileEntries() codemap.FileEntries {
	return codemap.FileEntries{Path: fs.Path, Entries: fs.Entries}
}

// ParseError reports a file that could not be parsed. It is scoped to that
// file; callers continue with the remaining files.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
