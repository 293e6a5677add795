package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/selector"
	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// MaxInnerTextLength bounds recorded innerText; longer text can never be
// matched at runtime.
const MaxInnerTextLength = 100

// internalMarker prefixes tag names that are not part of the public markup.
const internalMarker = "_"

// ErrSyntax is wrapped by ParseError when the tree contains syntax errors.
var ErrSyntax = errors.New("syntax error")

// Engine extracts selectors from JSX/TSX sources. It is safe for concurrent
// use; every call creates its own parser.
type Engine struct {
	language *sitter.Language
	opts     Options
}

// NewEngine creates an engine using the TSX grammar, which also covers
// plain JSX.
func NewEngine(opts Options) *Engine {
	return &Engine{
		language: sitter.NewLanguage(typescript.LanguageTSX()),
		opts:     opts,
	}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// ExtractFile reads absPath and extracts its selectors, recording relPath as
// the file of every record.
func (e *Engine) ExtractFile(ctx context.Context, absPath, relPath string) (*FileSelectors, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	return e.Extract(ctx, relPath, source)
}

// Extract parses source and returns its selectors in emission order. The
// first occurrence of a key within the file wins.
func (e *Engine) Extract(ctx context.Context, path string, source []byte) (*FileSelectors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(e.language); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Path: path, Err: errors.New("parser returned no tree")}
	}
	defer tree.Close()

	root := tree.RootNode()
	if !e.opts.TolerateSyntaxErrors {
		if bad := findError(root); bad != nil {
			line, _ := lineOf(bad)
			if bad.IsMissing() {
				line = int(bad.StartPosition().Row) + 1
			}
			return nil, &ParseError{Path: path, Line: line, Err: ErrSyntax}
		}
	}

	w := &walker{
		opts:   e.opts,
		path:   path,
		source: source,
		seen:   make(map[string]bool),
		result: &FileSelectors{Path: path},
	}
	w.walk(root, false)
	return w.result, nil
}

// walker holds the per-file traversal state.
type walker struct {
	opts   Options
	path   string
	source []byte
	seen   map[string]bool
	result *FileSelectors
}

// walk visits every node. Branches of && / || and both arms of a ternary are
// walked like any other subtree; they are only flagged as conditional.
func (w *walker) walk(node *sitter.Node, conditional bool) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "jsx_element":
		w.element(node.ChildByFieldName("open_tag"), node, conditional)

	case "jsx_self_closing_element":
		w.element(node, nil, conditional)

	case "binary_expression":
		if isLogical(node) {
			w.walk(node.ChildByFieldName("left"), conditional)
			w.walk(node.ChildByFieldName("right"), true)
			return
		}

	case "ternary_expression":
		w.walk(node.ChildByFieldName("condition"), conditional)
		w.walk(node.ChildByFieldName("consequence"), true)
		w.walk(node.ChildByFieldName("alternative"), true)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i), conditional)
	}
}

// element applies the per-element extraction steps to an opening (or
// self-closing) element. full is the enclosing jsx_element, used for text.
func (w *walker) element(opening, full *sitter.Node, conditional bool) {
	if opening == nil {
		return
	}
	w.result.Elements++
	if conditional {
		w.result.ConditionalElements++
	}

	line, ok := lineOf(opening)
	if !ok {
		return
	}

	var innerText string
	if w.opts.IncludeInnerText && full != nil {
		innerText = w.innerText(full)
	}

	emit := func(key string) {
		w.emit(key, line, innerText)
	}

	if w.opts.ExtractElementTypes {
		if name := w.elementName(opening.ChildByFieldName("name")); name != "" && !strings.HasPrefix(name, internalMarker) {
			emit(selector.Element(name))
		}
	}

	for _, attr := range namedChildren(opening) {
		if attr.Kind() != "jsx_attribute" {
			continue
		}
		w.attribute(attr, emit)
	}
}

// elementName resolves the tag name; member-style names use the trailing
// member. Namespaced names yield nothing.
func (w *walker) elementName(name *sitter.Node) string {
	if name == nil {
		return ""
	}
	switch name.Kind() {
	case "identifier", "jsx_identifier":
		return strings.ToLower(nodeText(name, w.source))
	case "member_expression", "nested_identifier":
		text := nodeText(name, w.source)
		return strings.ToLower(strings.TrimSpace(text[strings.LastIndex(text, ".")+1:]))
	}
	return ""
}

// attribute dispatches one JSX attribute to the class, id or data rule.
func (w *walker) attribute(attr *sitter.Node, emit func(string)) {
	children := namedChildren(attr)
	if len(children) == 0 {
		return
	}
	nameNode := children[0]
	if nameNode.Kind() != "property_identifier" {
		return
	}
	name := nodeText(nameNode, w.source)

	var valueNode *sitter.Node
	if len(children) > 1 {
		valueNode = children[1]
	}

	switch {
	case name == "className" || name == "class":
		w.classes(classifyValue(valueNode, w.source), emit)

	case name == "id":
		v := classifyValue(valueNode, w.source)
		if v.kind == valueLiteral && isToken(v.literal) {
			emit(selector.ID(v.literal))
		}

	case strings.HasPrefix(name, "data-"):
		if !w.opts.ExtractDataAttributes {
			return
		}
		v := classifyValue(valueNode, w.source)
		if v.kind == valueLiteral && !strings.Contains(v.literal, `"`) {
			emit(selector.Data(name, v.literal))
		}
	}
}

// classes applies the class rule for each value shape.
func (w *walker) classes(v attrValue, emit func(string)) {
	emitTokens := func(s string) {
		for _, token := range strings.Fields(s) {
			emit(selector.Class(token))
		}
	}

	switch v.kind {
	case valueLiteral:
		emitTokens(v.literal)

	case valueTemplate:
		for _, seg := range v.segments {
			emitTokens(seg)
		}
		if w.opts.HandleDynamicClasses {
			for _, sub := range v.substitutions {
				for _, lit := range literalStrings(sub, w.source) {
					emitTokens(lit)
				}
			}
		}

	case valueArray:
		for _, item := range v.items {
			emitTokens(item)
		}

	case valueMember:
		if w.opts.HandleDynamicClasses {
			emit(selector.Class(v.property))
		}
	}
}

func (w *walker) emit(key string, line int, innerText string) {
	if w.seen[key] {
		return
	}
	w.seen[key] = true

	rec := codemap.Record{File: w.path, Line: line, InnerText: innerText}
	if w.opts.IncludeHashes {
		rec.Hash = contentHash(w.source, key, line)
	}
	w.result.Entries = append(w.result.Entries, codemap.Entry{Key: key, Record: rec})
}

// innerText returns the collapsed static text of an element whose children
// are all text, or "" when any child is markup or a dynamic expression.
// Pieces are joined as rendered: an entity next to a letter stays attached.
func (w *walker) innerText(full *sitter.Node) string {
	var b strings.Builder
	for _, child := range namedChildren(full) {
		switch child.Kind() {
		case "jsx_opening_element", "jsx_closing_element":
		case "jsx_text":
			b.WriteString(html.UnescapeString(jsxText(nodeText(child, w.source))))
		case "html_character_reference":
			b.WriteString(html.UnescapeString(nodeText(child, w.source)))
		case "jsx_expression":
			expr := unwrapParens(firstNamedChild(child))
			if expr == nil {
				continue
			}
			if expr.Kind() != "string" {
				return ""
			}
			b.WriteString(stringValue(expr, w.source))
		default:
			return ""
		}
	}

	text := collapseSpace(b.String())
	if utf8.RuneCountInString(text) > MaxInnerTextLength {
		return ""
	}
	return text
}

// contentHash fingerprints a selector occurrence.
func contentHash(source []byte, key string, line int) string {
	h := sha256.New()
	h.Write(source)
	h.Write([]byte(key))
	h.Write([]byte(strconv.Itoa(line)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func isToken(s string) bool {
	return s != "" && strings.IndexFunc(s, unicode.IsSpace) < 0
}
