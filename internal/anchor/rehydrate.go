package anchor

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
)

var (
	// ErrUnresolvable means a stored path no longer matches a node.
	ErrUnresolvable = errors.New("path does not resolve")

	// ErrCollapsed means the resolved range is empty or inverted.
	ErrCollapsed = errors.New("range is collapsed")
)

// Rehydrate rebuilds a live range from a structural record.
// Stored offsets are clamped to the resolved containers, since the page may
// have changed since the record was taken.
func Rehydrate(root *html.Node, sr domain.StructuralRange) (*dom.Range, error) {
	start, ok := Resolve(root, sr.StartPath)
	if !ok {
		return nil, fmt.Errorf("%w: start %s", ErrUnresolvable, sr.StartPath)
	}
	end, ok := Resolve(root, sr.EndPath)
	if !ok {
		return nil, fmt.Errorf("%w: end %s", ErrUnresolvable, sr.EndPath)
	}

	r := dom.NewRange(start, clamp(sr.StartOffset, start), end, clamp(sr.EndOffset, end))
	if r.Collapsed() || !r.Ordered() {
		return nil, fmt.Errorf("%w: %s:%d..%s:%d", ErrCollapsed,
			sr.StartPath, r.StartOffset, sr.EndPath, r.EndOffset)
	}
	return r, nil
}

func clamp(offset int, n *html.Node) int {
	if offset < 0 {
		return 0
	}
	if l := dom.Length(n); offset > l {
		return l
	}
	return offset
}
