package overlay

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedTags never receive markers: they render nothing, or wrapping them
// would break the document structure.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"head":     true,
	"title":    true,
	"base":     true,
	"noscript": true,
	"template": true,
	"html":     true,
	"body":     true,
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}
	classes := strings.Fields(attr(n, "class"))
	setAttr(n, "class", strings.Join(append(classes, class), " "))
}

func removeClass(n *html.Node, class string) {
	classes := strings.Fields(attr(n, "class"))
	kept := classes[:0]
	for _, c := range classes {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// newElement creates an element with attributes given as key/value pairs.
func newElement(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// isOverlayNode reports whether n was added by the overlay.
func isOverlayNode(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if attr(n, "id") == StylesID || attr(n, MarkerAttr) != "" {
		return true
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		switch c {
		case ClassBadge, ClassFileInfo, ClassWrapper:
			return true
		}
	}
	return false
}

// wrap ensures el sits directly inside a positioned wrapper and returns it.
// An existing wrapper is reused.
func wrap(el *html.Node) *html.Node {
	parent := el.Parent
	if parent != nil && hasClass(parent, ClassWrapper) {
		return parent
	}

	wrapper := newElement(atom.Div, "class", ClassWrapper, "style", "position: relative")
	if parent != nil {
		parent.InsertBefore(wrapper, el)
		parent.RemoveChild(el)
	}
	wrapper.AppendChild(el)
	return wrapper
}
