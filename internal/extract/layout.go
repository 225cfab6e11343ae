package extract

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Layout attributes written onto elements by the page snapshotter, since
// static markup carries no geometry of its own.
const (
	AttrRectTop       = "data-xr-top"
	AttrRectBottom    = "data-xr-bottom"
	AttrNaturalWidth  = "data-xr-natural-width"
	AttrNaturalHeight = "data-xr-natural-height"
)

// Rect is the vertical extent of an element in page coordinates.
type Rect struct {
	Top    float64
	Bottom float64
}

// Layout supplies rendered geometry for nodes.
type Layout interface {
	// Rect returns the element's box, or false when unknown.
	Rect(n *html.Node) (Rect, bool)
	// ImageSize returns natural (or, failing that, attribute) dimensions.
	// Zero means unknown.
	ImageSize(n *html.Node) (width, height int)
}

// AttrLayout reads geometry from data-xr-* attributes, falling back to the
// img width/height attributes for image size.
type AttrLayout struct{}

// Rect implements Layout.
func (AttrLayout) Rect(n *html.Node) (Rect, bool) {
	top, okTop := parseFloat(attr(n, AttrRectTop))
	bottom, okBottom := parseFloat(attr(n, AttrRectBottom))
	if !okTop || !okBottom {
		return Rect{}, false
	}
	return Rect{Top: top, Bottom: bottom}, true
}

// ImageSize implements Layout.
func (AttrLayout) ImageSize(n *html.Node) (int, int) {
	w := firstInt(attr(n, AttrNaturalWidth), attr(n, "width"))
	h := firstInt(attr(n, AttrNaturalHeight), attr(n, "height"))
	return w, h
}

// firstInt returns the first positive integer among values.
func firstInt(values ...string) int {
	for _, v := range values {
		f, ok := parseFloat(v)
		if ok && f > 0 {
			return int(f)
		}
	}
	return 0
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
