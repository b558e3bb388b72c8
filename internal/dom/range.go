package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrPartialNonText is returned by SurroundContents when the range cuts
	// through an element, which a plain surround cannot wrap.
	ErrPartialNonText = errors.New("range partially selects a non-text node")

	// ErrDetached is returned when a boundary has no parent to insert into.
	ErrDetached = errors.New("range boundary is detached")
)

// Range is a pair of boundary points, mirroring the browser Range object.
// The end boundary is exclusive.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// TextSegment is the part of one text node covered by a range, in runes.
type TextSegment struct {
	Node  *html.Node
	Start int
	End   int
}

// Text returns the covered characters.
func (s TextSegment) Text() string {
	return SliceRunes(s.Node.Data, s.Start, s.End)
}

// NewRange builds a range from two boundary points.
func NewRange(sc *html.Node, so int, ec *html.Node, eo int) *Range {
	return &Range{StartContainer: sc, StartOffset: so, EndContainer: ec, EndOffset: eo}
}

// Select returns a range covering exactly n.
func Select(n *html.Node) *Range {
	i := Index(n)
	return NewRange(n.Parent, i, n.Parent, i+1)
}

// SelectContents returns a range covering the contents of n.
func SelectContents(n *html.Node) *Range {
	return NewRange(n, 0, n, Length(n))
}

// Clone returns a copy of the boundary points.
func (r *Range) Clone() *Range {
	c := *r
	return &c
}

func (r *Range) String() string {
	var b strings.Builder
	for _, seg := range r.TextSegments() {
		b.WriteString(seg.Text())
	}
	return b.String()
}

// Collapsed reports whether start and end are the same point.
func (r *Range) Collapsed() bool {
	return r.StartContainer == r.EndContainer && r.StartOffset == r.EndOffset
}

// Ordered reports whether start is before or equal to end.
func (r *Range) Ordered() bool {
	return ComparePoints(r.StartContainer, r.StartOffset, r.EndContainer, r.EndOffset) <= 0
}

// CommonAncestor returns the deepest node containing both boundaries.
func (r *Range) CommonAncestor() *html.Node {
	n := r.StartContainer
	for n != nil && !IsInclusiveAncestor(n, r.EndContainer) {
		n = n.Parent
	}
	return n
}

// Contains reports whether n lies entirely inside the range.
func (r *Range) Contains(n *html.Node) bool {
	if Root(n) != Root(r.StartContainer) {
		return false
	}
	return ComparePoints(n, 0, r.StartContainer, r.StartOffset) > 0 &&
		ComparePoints(n, Length(n), r.EndContainer, r.EndOffset) < 0
}

// PartiallyContains reports whether n is an inclusive ancestor of exactly
// one boundary container.
func (r *Range) PartiallyContains(n *html.Node) bool {
	return IsInclusiveAncestor(n, r.StartContainer) != IsInclusiveAncestor(n, r.EndContainer)
}

// TextSegments lists the covered part of every text node in the range, in
// tree order. Empty segments are omitted.
func (r *Range) TextSegments() []TextSegment {
	if !r.Ordered() {
		return nil
	}
	scope := r.CommonAncestor()
	if scope == nil {
		return nil
	}
	var out []TextSegment
	for n := scope; n != nil; n = Next(n, scope) {
		if n.Type != html.TextNode {
			continue
		}
		start, end := 0, Length(n)
		if n == r.StartContainer {
			start = r.StartOffset
		} else if ComparePoints(n, 0, r.StartContainer, r.StartOffset) < 0 {
			continue
		}
		if n == r.EndContainer {
			end = r.EndOffset
		} else if ComparePoints(n, Length(n), r.EndContainer, r.EndOffset) > 0 {
			break
		}
		if start < end {
			out = append(out, TextSegment{Node: n, Start: start, End: end})
		}
	}
	return out
}

// ComparePoints returns -1, 0 or 1 as point A is before, equal to or after
// point B.
func ComparePoints(nodeA *html.Node, offsetA int, nodeB *html.Node, offsetB int) int {
	if nodeA == nodeB {
		switch {
		case offsetA < offsetB:
			return -1
		case offsetA > offsetB:
			return 1
		}
		return 0
	}
	if Precedes(nodeB, nodeA) {
		return -ComparePoints(nodeB, offsetB, nodeA, offsetA)
	}
	if IsInclusiveAncestor(nodeA, nodeB) {
		child := nodeB
		for child.Parent != nodeA {
			child = child.Parent
		}
		if Index(child) < offsetA {
			return 1
		}
	}
	return -1
}

// ExtractContents moves the range content out of the tree and returns it as
// a list of detached nodes. Elements cut by a boundary are split: the
// returned list carries shallow clones holding the extracted part.
// The range collapses to the point where the content used to start.
func (r *Range) ExtractContents() []*html.Node {
	if r.Collapsed() {
		return nil
	}

	sc, so, ec, eo := r.StartContainer, r.StartOffset, r.EndContainer, r.EndOffset

	if sc == ec && IsCharacterData(sc) {
		head, rest := SplitRunes(sc.Data, so)
		mid, tail := SplitRunes(rest, eo-so)
		clone := Clone(sc, false)
		clone.Data = mid
		sc.Data = head + tail
		r.EndOffset = so
		return []*html.Node{clone}
	}

	common := r.CommonAncestor()

	var firstPartial, lastPartial *html.Node
	if !IsInclusiveAncestor(sc, ec) {
		for c := common.FirstChild; c != nil; c = c.NextSibling {
			if r.PartiallyContains(c) {
				firstPartial = c
				break
			}
		}
	}
	if !IsInclusiveAncestor(ec, sc) {
		for c := common.LastChild; c != nil; c = c.PrevSibling {
			if r.PartiallyContains(c) {
				lastPartial = c
				break
			}
		}
	}

	var contained []*html.Node
	for c := common.FirstChild; c != nil; c = c.NextSibling {
		if r.Contains(c) {
			contained = append(contained, c)
		}
	}

	newNode, newOffset := sc, so
	if !IsInclusiveAncestor(sc, ec) {
		ref := sc
		for ref.Parent != nil && !IsInclusiveAncestor(ref.Parent, ec) {
			ref = ref.Parent
		}
		newNode, newOffset = ref.Parent, Index(ref)+1
	}

	var frag []*html.Node

	if firstPartial != nil {
		if IsCharacterData(firstPartial) {
			head, tail := SplitRunes(sc.Data, so)
			clone := Clone(sc, false)
			clone.Data = tail
			sc.Data = head
			frag = append(frag, clone)
		} else {
			clone := Clone(firstPartial, false)
			sub := NewRange(sc, so, firstPartial, Length(firstPartial))
			for _, n := range sub.ExtractContents() {
				clone.AppendChild(n)
			}
			frag = append(frag, clone)
		}
	}

	for _, c := range contained {
		Detach(c)
		frag = append(frag, c)
	}

	if lastPartial != nil {
		if IsCharacterData(lastPartial) {
			head, tail := SplitRunes(ec.Data, eo)
			clone := Clone(ec, false)
			clone.Data = head
			ec.Data = tail
			frag = append(frag, clone)
		} else {
			clone := Clone(lastPartial, false)
			sub := NewRange(lastPartial, 0, ec, eo)
			for _, n := range sub.ExtractContents() {
				clone.AppendChild(n)
			}
			frag = append(frag, clone)
		}
	}

	r.StartContainer, r.StartOffset = newNode, newOffset
	r.EndContainer, r.EndOffset = newNode, newOffset
	return frag
}

// InsertNode inserts n at the start of the range, splitting a text start
// container when needed.
func (r *Range) InsertNode(n *html.Node) error {
	sc := r.StartContainer
	if sc.Type == html.CommentNode || sc == n {
		return fmt.Errorf("cannot insert into <%s>", sc.Data)
	}

	var parent, ref *html.Node
	if sc.Type == html.TextNode {
		parent = sc.Parent
		if parent == nil {
			return ErrDetached
		}
		ref = SplitText(sc, r.StartOffset)
		if r.EndContainer == sc && r.EndOffset > r.StartOffset {
			r.EndContainer, r.EndOffset = ref, r.EndOffset-r.StartOffset
		}
	} else {
		parent = sc
		ref = ChildAt(parent, r.StartOffset)
	}
	if ref == n {
		ref = n.NextSibling
	}
	Detach(n)

	newOffset := Length(parent)
	if ref != nil {
		newOffset = Index(ref)
	}
	parent.InsertBefore(n, ref)

	if r.Collapsed() {
		r.EndContainer, r.EndOffset = parent, newOffset+1
	}
	return nil
}

// SurroundContents moves the range content into wrapper and puts wrapper
// where the content was. The range then selects wrapper.
func (r *Range) SurroundContents(wrapper *html.Node) error {
	for n := r.StartContainer; n != nil; n = n.Parent {
		if n.Type != html.TextNode && r.PartiallyContains(n) {
			return fmt.Errorf("%w: <%s>", ErrPartialNonText, n.Data)
		}
	}
	for n := r.EndContainer; n != nil; n = n.Parent {
		if n.Type != html.TextNode && r.PartiallyContains(n) {
			return fmt.Errorf("%w: <%s>", ErrPartialNonText, n.Data)
		}
	}

	frag := r.ExtractContents()
	for c := wrapper.FirstChild; c != nil; c = wrapper.FirstChild {
		wrapper.RemoveChild(c)
	}
	if err := r.InsertNode(wrapper); err != nil {
		return err
	}
	for _, n := range frag {
		wrapper.AppendChild(n)
	}
	*r = *Select(wrapper)
	return nil
}
