package overlay

import (
	"strconv"

	"golang.org/x/net/html"
)

// Attributes carrying the rendered size of an element, stamped by a
// rendering pass before the document is serialized.
const (
	WidthAttr  = "data-" + Namespace + "-width"
	HeightAttr = "data-" + Namespace + "-height"
)

// Geometry reports the rendered size of an element. ok is false when the
// size is unknown; such elements are treated as visible.
type Geometry interface {
	Size(el *html.Node) (width, height float64, ok bool)
}

// AttrGeometry reads sizes from WidthAttr and HeightAttr.
type AttrGeometry struct{}

func (AttrGeometry) Size(el *html.Node) (float64, float64, bool) {
	w, werr := strconv.ParseFloat(attr(el, WidthAttr), 64)
	h, herr := strconv.ParseFloat(attr(el, HeightAttr), 64)
	if werr != nil || herr != nil {
		return 0, 0, false
	}
	return w, h, true
}
