package paint

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/logger"
)

var (
	// ErrRestrictedBoundary means the range lies where a marker cannot go.
	ErrRestrictedBoundary = errors.New("range crosses a restricted boundary")

	// ErrPaintFailed means wrapping failed and the DOM was rolled back.
	ErrPaintFailed = errors.New("failed to paint highlight")

	// ErrEmptyRange means there is nothing to wrap.
	ErrEmptyRange = errors.New("range is empty")
)

// Method tells how a marker was placed.
type Method string

const (
	// MethodSurround wrapped the range in place.
	MethodSurround Method = "surround"
	// MethodExtract extracted the range and re-inserted it wrapped.
	MethodExtract Method = "extract"
)

// restricted elements never receive markers, nor does anything inside them.
var restricted = map[string]bool{
	"head":     true,
	"title":    true,
	"script":   true,
	"style":    true,
	"textarea": true,
	"select":   true,
	"option":   true,
	"template": true,
	"iframe":   true,
	"noscript": true,
}

// Painter paints and removes highlight markers.
type Painter struct {
	logger logger.Logger
}

// NewPainter creates a painter.
func NewPainter(log logger.Logger) *Painter {
	return &Painter{logger: log}
}

// Result holds the markers of one paint operation.
type Result struct {
	Markers []*html.Node
	Methods []Method
	undo    []snapshot
}

// Undo restores the DOM as it was before the paint. Snapshots are replayed
// newest first; each one relinks the original nodes of its scope.
func (r *Result) Undo() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i].restore()
	}
	r.undo = nil
	r.Markers = nil
}

// Paint wraps r in one marker element.
//
// A plain surround is tried first; when the range cuts through an element
// the contents are extracted and re-inserted inside the marker, keeping
// every node in order. On failure nothing is left mutated.
func (p *Painter) Paint(r *dom.Range, m Marker) (res *Result, err error) {
	if r == nil || r.Collapsed() || !r.Ordered() {
		return nil, ErrEmptyRange
	}

	scope := r.CommonAncestor()
	if scope != nil && scope.Type != html.ElementNode {
		scope = scope.Parent
	}
	if err := checkBoundary(scope); err != nil {
		return nil, err
	}

	snap := takeSnapshot(scope)
	defer func() {
		if rec := recover(); rec != nil {
			snap.restore()
			res, err = nil, fmt.Errorf("%w: %v", ErrPaintFailed, rec)
		}
	}()

	work := r.Clone()
	el := m.Element()
	method := MethodSurround
	if serr := work.SurroundContents(el); serr != nil {
		if !errors.Is(serr, dom.ErrPartialNonText) {
			snap.restore()
			return nil, fmt.Errorf("%w: %v", ErrPaintFailed, serr)
		}
		p.logger.Debug("surround not possible, extracting contents",
			logger.String("highlight_id", m.ID),
			logger.String("reason", serr.Error()))

		method = MethodExtract
		for _, n := range work.ExtractContents() {
			el.AppendChild(n)
		}
		if ierr := work.InsertNode(el); ierr != nil {
			snap.restore()
			return nil, fmt.Errorf("%w: %v", ErrPaintFailed, ierr)
		}
	}

	return &Result{
		Markers: []*html.Node{el},
		Methods: []Method{method},
		undo:    []snapshot{snap},
	}, nil
}

// PaintAll paints every range with the same marker identity. Either all
// ranges are painted or none is.
func (p *Painter) PaintAll(ranges []*dom.Range, m Marker) (*Result, error) {
	total := &Result{}
	for _, r := range ranges {
		res, err := p.Paint(r, m)
		if err != nil {
			total.Undo()
			return nil, err
		}
		total.Markers = append(total.Markers, res.Markers...)
		total.Methods = append(total.Methods, res.Methods...)
		total.undo = append(total.undo, res.undo...)
	}
	return total, nil
}

// Remove unwraps every marker carrying id and merges the text nodes left
// behind. It returns the number of markers removed.
func (p *Painter) Remove(root *html.Node, id string) int {
	markers := FindMarkers(root, id)
	for i := len(markers) - 1; i >= 0; i-- {
		unwrap(markers[i])
	}
	if len(markers) > 0 {
		p.logger.Debug("markers removed",
			logger.String("highlight_id", id),
			logger.Int("count", len(markers)))
	}
	return len(markers)
}

func unwrap(marker *html.Node) {
	parent := marker.Parent
	if parent == nil {
		return
	}
	for c := marker.FirstChild; c != nil; c = marker.FirstChild {
		marker.RemoveChild(c)
		parent.InsertBefore(c, marker)
	}
	parent.RemoveChild(marker)
	dom.Normalize(parent)
}

func checkBoundary(scope *html.Node) error {
	if scope == nil || scope.Type != html.ElementNode || scope.Data == "html" {
		return fmt.Errorf("%w: no element to hold the marker", ErrRestrictedBoundary)
	}
	for n := scope; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && restricted[n.Data] {
			return fmt.Errorf("%w: <%s>", ErrRestrictedBoundary, n.Data)
		}
	}
	return nil
}

// snapshot records the links, data and attributes of every node under an
// element. Restoring relinks those same nodes, so references held into the
// subtree stay attached and snapshots nest in any order.
type snapshot struct {
	nodes []nodeState
}

type nodeState struct {
	node     *html.Node
	data     string
	attr     []html.Attribute
	children []*html.Node
}

func takeSnapshot(scope *html.Node) snapshot {
	var s snapshot
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		st := nodeState{node: n, data: n.Data}
		if len(n.Attr) > 0 {
			st.attr = append([]html.Attribute(nil), n.Attr...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			st.children = append(st.children, c)
		}
		s.nodes = append(s.nodes, st)
		for _, c := range st.children {
			walk(c)
		}
	}
	walk(scope)
	return s
}

func (s snapshot) restore() {
	for _, st := range s.nodes {
		n := st.node
		n.Data = st.data
		n.Attr = st.attr
		n.FirstChild, n.LastChild = nil, nil
		var prev *html.Node
		for _, c := range st.children {
			c.Parent = n
			c.PrevSibling = prev
			c.NextSibling = nil
			if prev == nil {
				n.FirstChild = c
			} else {
				prev.NextSibling = c
			}
			prev = c
		}
		n.LastChild = prev
	}
}
