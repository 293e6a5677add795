// Package validate checks a code map against the workspace it describes.
//
// Errors: schema violations, records pointing at missing files, and lines
// that are not positive or exceed the file's line count. Warnings: an empty
// map, lines in the last 5% of a file, and keys that repeat (literally or by
// canonical form). Only errors fail validation.
package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/selector"
)

//go:embed schema.json
var schemaJSON string

// ErrNotFound is returned when the code map file does not exist.
var ErrNotFound = errors.New("code map file not found")

// Severity classifies an issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Issue is one finding.
type Issue struct {
	Severity Severity
	Selector string // empty for map-level findings
	Message  string
}

func (i Issue) String() string {
	if i.Selector == "" {
		return i.Message
	}
	return fmt.Sprintf("selector %q: %s", i.Selector, i.Message)
}

// Report is the outcome of a validation run.
type Report struct {
	Selectors int
	Files     int // distinct files referenced
	Issues    []Issue
}

// Valid reports whether there are no errors.
func (r *Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error issues.
func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning issues.
func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) errorf(key, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Selector: key, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(key, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Selector: key, Message: fmt.Sprintf(format, args...)})
}

// File validates the code map at path. Record files resolve against
// workspace.
func File(path, workspace string) (*Report, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read code map: %w", err)
	}
	return Bytes(data, workspace)
}

// Bytes validates an encoded code map. It returns an error only when the
// document is not JSON at all; everything else is reported as issues.
func Bytes(data []byte, workspace string) (*Report, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("code map is not valid JSON")
	}

	report := &Report{}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run schema validation: %w", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			report.errorf("", "schema: %s: %s", field, desc.Description())
		}
		return report, nil
	}

	cm, err := codemap.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode code map: %w", err)
	}
	report.Selectors = cm.Len()

	if cm.Len() == 0 {
		report.warnf("", "code map is empty")
	}

	for _, key := range repeatedKeys(data) {
		report.warnf(key, "appears more than once in the file; only the last value is kept")
	}

	checkRecords(report, cm, workspace)
	checkCanonicalDuplicates(report, cm)

	return report, nil
}

// checkRecords verifies every record's file and line.
func checkRecords(report *Report, cm *codemap.CodeMap, workspace string) {
	lineCounts := make(map[string]int)
	files := make(map[string]bool)

	cm.Each(func(key string, rec codemap.Record) bool {
		files[rec.File] = true

		if rec.Line < 1 {
			report.errorf(key, "invalid line number %d", rec.Line)
			return true
		}

		path := filepath.FromSlash(rec.File)
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}

		n, ok := lineCounts[path]
		if !ok {
			content, err := os.ReadFile(path)
			if err != nil {
				n = -1
			} else {
				n = lineCount(string(content))
			}
			lineCounts[path] = n
		}

		switch {
		case n < 0:
			report.errorf(key, "references non-existent file %s", rec.File)
		case rec.Line > n:
			report.errorf(key, "line %d exceeds file length (%d lines) in %s", rec.Line, n, rec.File)
		case rec.Line*20 > n*19:
			report.warnf(key, "line %d is in the last 5%% of %s (%d lines)", rec.Line, rec.File, n)
		}
		return true
	})

	report.Files = len(files)
}

// checkCanonicalDuplicates warns about distinct keys that name the same
// selector, such as camelCase and kebab-case spellings of one class.
func checkCanonicalDuplicates(report *Report, cm *codemap.CodeMap) {
	first := make(map[selector.Identity]string)
	cm.Each(func(key string, _ codemap.Record) bool {
		id := selector.IdentityOf(key)
		if prev, ok := first[id]; ok {
			report.warnf(key, "duplicates %q", prev)
			return true
		}
		first[id] = key
		return true
	})
}

// repeatedKeys scans the top-level object for literal key repeats, which a
// decoded map silently collapses.
func repeatedKeys(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	seen := make(map[string]int)
	var repeated []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return repeated
		}
		key, ok := tok.(string)
		if !ok {
			return repeated
		}
		seen[key]++
		if seen[key] == 2 {
			repeated = append(repeated, key)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return repeated
		}
	}
	return repeated
}

// lineCount counts lines the way an editor shows them: a final newline ends
// the last line rather than starting a new one.
func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(content, "\n"), "\n"))
}
