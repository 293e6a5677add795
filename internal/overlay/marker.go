package overlay

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/match"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// State is the interaction state of a marker.
type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// Marker is the badge attached to one matched element.
type Marker struct {
	ID     string
	Key    string
	Record codemap.Record
	Tier   match.Tier
	State  State

	element *html.Node
	wrapper *html.Node
	badge   *html.Node
}

// Element returns the matched element.
func (m *Marker) Element() *html.Node { return m.element }

// toggle is the only transition: collapsed <-> expanded.
func (m *Marker) toggle() State {
	if m.State == Collapsed {
		m.State = Expanded
		addClass(m.badge, ClassExpanded)
	} else {
		m.State = Collapsed
		removeClass(m.badge, ClassExpanded)
	}
	return m.State
}

func newMarker(res match.Result, el *html.Node) *Marker {
	return &Marker{
		ID:      uuid.NewString(),
		Key:     res.Key,
		Record:  res.Record,
		Tier:    res.Tier,
		element: el,
	}
}

// badgeNode builds the marker's badge. href is the editor link, or "" when
// opening in the editor is disabled.
func badgeNode(m *Marker, mode Mode, href string) *html.Node {
	class := ClassBadge
	switch mode {
	case ModeHover:
		class += " " + ClassHoverMode
	case ModeAlways:
		class += " " + ClassAlwaysVisible
	}

	badge := newElement(atom.Div,
		"class", class,
		MarkerAttr, m.ID,
		"data-file", m.Record.File,
		"data-line", strconv.Itoa(m.Record.Line),
	)
	if href != "" {
		setAttr(badge, HrefAttr, href)
	}
	badge.AppendChild(textNode("See the code"))

	info := newElement(atom.Div, "class", ClassFileInfo)
	info.AppendChild(textNode(fmt.Sprintf("%s:%d", m.Record.File, m.Record.Line)))
	badge.AppendChild(info)
	return badge
}
