package extract

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// valueKind is the closed set of attribute value shapes the engine knows how
// to read.
type valueKind int

const (
	valueUnknown valueKind = iota
	valueLiteral
	valueTemplate
	valueArray
	valueMember
)

// attrValue is an attribute value classified into one of the known shapes.
type attrValue struct {
	kind valueKind

	// literal is set for valueLiteral.
	literal string

	// segments holds the static text of a template, in source order.
	segments []string

	// substitutions holds the expressions interpolated into a template.
	substitutions []*sitter.Node

	// items holds the literal string elements of an array.
	items []string

	// property is the accessed property name of a member expression.
	property string
}

// classifyValue reads the value node of a JSX attribute. Expression
// containers are unwrapped first.
func classifyValue(node *sitter.Node, source []byte) attrValue {
	if node == nil {
		return attrValue{}
	}

	if node.Kind() == "jsx_expression" {
		node = unwrapParens(firstNamedChild(node))
		if node == nil {
			return attrValue{}
		}
		if node.Kind() == "string" {
			return attrValue{kind: valueLiteral, literal: stringValue(node, source)}
		}
	} else if node.Kind() == "string" {
		return attrValue{kind: valueLiteral, literal: jsxStringValue(node, source)}
	}

	switch node.Kind() {
	case "template_string":
		return classifyTemplate(node, source)

	case "array":
		v := attrValue{kind: valueArray}
		for _, item := range namedChildren(node) {
			if item.Kind() == "string" {
				v.items = append(v.items, stringValue(item, source))
			}
		}
		return v

	case "member_expression":
		prop := node.ChildByFieldName("property")
		if prop == nil || prop.Kind() != "property_identifier" {
			return attrValue{}
		}
		return attrValue{kind: valueMember, property: nodeText(prop, source)}
	}

	return attrValue{}
}

// classifyTemplate splits a template string into its static segments and
// substitutions using byte ranges, so the segments keep their raw text.
func classifyTemplate(node *sitter.Node, source []byte) attrValue {
	v := attrValue{kind: valueTemplate}

	start := node.StartByte() + 1
	end := node.EndByte() - 1
	for _, child := range namedChildren(node) {
		if child.Kind() != "template_substitution" {
			continue
		}
		v.segments = append(v.segments, string(source[start:child.StartByte()]))
		if expr := firstNamedChild(child); expr != nil {
			v.substitutions = append(v.substitutions, expr)
		}
		start = child.EndByte()
	}
	if end >= start {
		v.segments = append(v.segments, string(source[start:end]))
	}
	return v
}

// literalStrings collects string literals an expression can evaluate to
// through ternaries, logical operators and parentheses. Used for the
// dynamic-class opt-in only.
func literalStrings(node *sitter.Node, source []byte) []string {
	node = unwrapParens(node)
	if node == nil {
		return nil
	}

	switch node.Kind() {
	case "string":
		return []string{stringValue(node, source)}
	case "ternary_expression":
		out := literalStrings(node.ChildByFieldName("consequence"), source)
		return append(out, literalStrings(node.ChildByFieldName("alternative"), source)...)
	case "binary_expression":
		if isLogical(node) {
			return literalStrings(node.ChildByFieldName("right"), source)
		}
	}
	return nil
}

// isLogical reports whether node is an && or || expression.
func isLogical(node *sitter.Node) bool {
	if node == nil || node.Kind() != "binary_expression" {
		return false
	}
	op := node.ChildByFieldName("operator")
	if op == nil {
		return false
	}
	switch op.Kind() {
	case "&&", "||":
		return true
	}
	return false
}
