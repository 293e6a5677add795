package overlay

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func ns(name string) string {
	return Namespace + "-" + name
}

// Class names and ids the overlay adds to the document.
var (
	ClassBadge          = ns("badge")
	ClassExpanded       = ns("expanded")
	ClassFileInfo       = ns("file-info")
	ClassWrapper        = ns("element-wrapper")
	ClassDebugUnmatched = ns("debug-unmatched")
	ClassHoverMode      = ns("hover-mode")
	ClassAlwaysVisible  = ns("always-visible")
	StylesID            = ns("styles")

	// MarkerAttr carries the marker id on a badge.
	MarkerAttr = "data-" + ns("marker")

	// HrefAttr carries the editor URI on a badge.
	HrefAttr = "data-" + ns("href")
)

var stylesheet = fmt.Sprintf(`
.%[1]s {
  position: absolute;
  top: 2px;
  right: 2px;
  background: rgba(0, 123, 255, 0.9);
  color: white;
  font-size: 10px;
  padding: 2px 6px;
  border-radius: 3px;
  cursor: pointer;
  z-index: 999999;
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  font-weight: 500;
  line-height: 1.4;
  box-shadow: 0 1px 3px rgba(0, 0, 0, 0.2);
  transition: all 0.2s ease;
  pointer-events: auto;
  white-space: nowrap;
  user-select: none;
}
.%[1]s:hover {
  background: rgba(0, 123, 255, 1);
  transform: scale(1.05);
}
.%[1]s.%[2]s {
  background: rgba(0, 123, 255, 0.95);
  padding: 4px 8px;
  font-size: 11px;
  max-width: 300px;
  white-space: normal;
  word-break: break-word;
}
.%[1]s.%[2]s .%[3]s {
  display: block;
  margin-top: 2px;
  font-size: 9px;
  opacity: 0.9;
}
.%[3]s {
  display: none;
}
.%[4]s {
  position: relative;
}
.%[5]s {
  outline: 2px solid red !important;
  outline-offset: 2px;
}
.%[1]s.%[6]s {
  opacity: 0;
  transition: opacity 0.2s ease;
}
.%[4]s:hover .%[1]s.%[6]s {
  opacity: 1;
}
.%[1]s.%[7]s {
  opacity: 1;
}
`, ClassBadge, ClassExpanded, ClassFileInfo, ClassWrapper, ClassDebugUnmatched, ClassHoverMode, ClassAlwaysVisible)

// injectStyles replaces the overlay stylesheet, so there is exactly one.
func injectStyles(doc *goquery.Document) {
	doc.Find("#" + StylesID).Remove()

	style := newElement(atom.Style, "id", StylesID)
	style.AppendChild(&html.Node{Type: html.TextNode, Data: stylesheet})

	target := doc.Find("head").First()
	if target.Length() == 0 {
		target = doc.Find("html").First()
	}
	if target.Length() == 0 {
		doc.Nodes[0].AppendChild(style)
		return
	}
	target.AppendNodes(style)
}
