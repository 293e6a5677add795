package extract

import (
	"html"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeText extracts the source text covered by a node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// lineOf returns the 1-indexed start line of a node. Missing nodes inserted
// by error recovery have no real location.
func lineOf(node *sitter.Node) (int, bool) {
	if node == nil || node.IsMissing() {
		return 0, false
	}
	return int(node.StartPosition().Row) + 1, true
}

// namedChildren returns the named children of a node, skipping comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// firstNamedChild returns the first non-comment named child.
func firstNamedChild(node *sitter.Node) *sitter.Node {
	children := namedChildren(node)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// unwrapParens strips any number of enclosing parentheses.
func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Kind() == "parenthesized_expression" {
		node = firstNamedChild(node)
	}
	return node
}

// findError returns the first ERROR or missing node in the tree.
func findError(node *sitter.Node) *sitter.Node {
	if node == nil || !node.HasError() {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := findError(node.Child(i)); found != nil {
			return found
		}
	}
	return node
}

// stringValue decodes a JavaScript string literal node.
func stringValue(node *sitter.Node, source []byte) string {
	var b strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "string_fragment":
			b.WriteString(nodeText(child, source))
		case "escape_sequence":
			b.WriteString(decodeEscape(nodeText(child, source)))
		case "html_character_reference":
			b.WriteString(html.UnescapeString(nodeText(child, source)))
		}
	}
	return b.String()
}

// jsxStringValue decodes a JSX attribute string. JSX attribute strings have
// no backslash escapes but do decode HTML character references.
func jsxStringValue(node *sitter.Node, source []byte) string {
	raw := nodeText(node, source)
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	return html.UnescapeString(raw)
}

func decodeEscape(seq string) string {
	value, _, tail, err := strconv.UnquoteChar(seq, '"')
	if err != nil || tail != "" {
		// Line continuations and other sequences UnquoteChar rejects
		return strings.TrimPrefix(seq, "\\")
	}
	return string(value)
}

// collapseSpace trims text and folds whitespace runs to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// jsxText applies JSX whitespace rules to a text child: whitespace runs that
// contain a line break are dropped, and the remaining lines are joined with a
// single space.
func jsxText(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\t", " "), "\n")
	if len(lines) == 1 {
		return raw
	}

	lastNonEmpty := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lastNonEmpty = i
		}
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			line = strings.TrimLeft(line, " \r")
		}
		if i < len(lines)-1 {
			line = strings.TrimRight(line, " \r")
		}
		if line == "" {
			continue
		}
		b.WriteString(line)
		if i != lastNonEmpty {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
