// Package paint wraps live ranges in highlight markers and removes them.
package paint

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MrSnakeDoc/hilite/internal/dom"
)

// Marker element contract, shared with host page stylesheets.
const (
	MarkerClass   = "hilite-mark"
	IDAttr        = "data-highlight-id"
	ColorProperty = "--hilite-color"
)

// Marker describes the element painted around a highlight.
type Marker struct {
	ID    string
	Color string // display color, e.g. "#ffeb3b"
}

// Element builds a detached marker element.
func (m Marker) Element() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Mark,
		Data:     atom.Mark.String(),
		Attr: []html.Attribute{
			{Key: "class", Val: MarkerClass},
			{Key: IDAttr, Val: m.ID},
			{Key: "style", Val: markerStyle(m.Color)},
		},
	}
}

func markerStyle(color string) string {
	return fmt.Sprintf("background-color: %s; %s: %s;", color, ColorProperty, color)
}

// IsMarker reports whether n is a highlight marker.
func IsMarker(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || !dom.HasClass(n, MarkerClass) {
		return false
	}
	_, ok := dom.Attr(n, IDAttr)
	return ok
}

// MarkerID returns the highlight id carried by a marker.
func MarkerID(n *html.Node) string {
	id, _ := dom.Attr(n, IDAttr)
	return id
}

// InsideMarker reports whether n has a marker ancestor.
func InsideMarker(n *html.Node) bool {
	for x := n.Parent; x != nil; x = x.Parent {
		if IsMarker(x) {
			return true
		}
	}
	return false
}

// FindMarkers returns every marker under root carrying id, in tree order.
func FindMarkers(root *html.Node, id string) []*html.Node {
	return dom.FindAll(root, func(n *html.Node) bool {
		return IsMarker(n) && MarkerID(n) == id
	})
}

// Recolor rewrites the color of every marker carrying id and returns how
// many were updated.
func Recolor(root *html.Node, id, color string) int {
	markers := FindMarkers(root, id)
	for _, m := range markers {
		dom.SetAttr(m, "style", markerStyle(color))
	}
	return len(markers)
}
