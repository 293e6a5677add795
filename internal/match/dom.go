package match

import (
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

// ClassList returns the element's class tokens in attribute order.
func ClassList(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// blockTags break text runs the way a browser lays out block boxes.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// VisibleText returns the element's text content with whitespace collapsed.
// Adjacent text nodes join without a separator; block elements start and end
// a run. Script, style and template contents are not visible; skip excludes
// further subtrees.
func VisibleText(n *html.Node, skip func(*html.Node) bool) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				switch c.Data {
				case "script", "style", "template", "noscript":
					continue
				}
				if skip != nil && skip(c) {
					continue
				}
				block := blockTags[c.Data]
				if block {
					b.WriteByte(' ')
				}
				visit(c)
				if block {
					b.WriteByte(' ')
				}
			}
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
