// Package selection normalizes raw user selections before they are anchored.
package selection

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrSnakeDoc/hilite/internal/dom"
)

// ErrEmptySelection means nothing but whitespace was selected.
var ErrEmptySelection = errors.New("selection is empty or whitespace only")

// Trim returns a copy of r without leading and trailing whitespace.
//
// The start moves forward over whitespace and, once its text node is
// exhausted, into the next text node; the end moves backward the same way.
// Neither boundary crosses the original other end. r is never modified.
func Trim(r *dom.Range) (*dom.Range, error) {
	if r == nil || r.StartContainer == nil || r.EndContainer == nil {
		return nil, ErrEmptySelection
	}
	if r.Collapsed() || !r.Ordered() {
		return nil, ErrEmptySelection
	}

	segs := r.TextSegments()

	first, last := -1, -1
	var startOffset, endOffset int
	for i, seg := range segs {
		if off, ok := firstNonSpace(seg); ok {
			first, startOffset = i, off
			break
		}
	}
	if first < 0 {
		return nil, ErrEmptySelection
	}
	for i := len(segs) - 1; i >= first; i-- {
		if off, ok := lastNonSpace(segs[i]); ok {
			last, endOffset = i, off
			break
		}
	}

	trimmed := dom.NewRange(segs[first].Node, startOffset, segs[last].Node, endOffset)
	if trimmed.Collapsed() || strings.TrimSpace(trimmed.String()) == "" {
		return nil, ErrEmptySelection
	}
	return trimmed, nil
}

// firstNonSpace returns the rune offset of the first non-space character
// of seg within its node.
func firstNonSpace(seg dom.TextSegment) (int, bool) {
	off := seg.Start
	for _, r := range seg.Text() {
		if !unicode.IsSpace(r) {
			return off, true
		}
		off++
	}
	return 0, false
}

// lastNonSpace returns the rune offset just after the last non-space
// character of seg within its node.
func lastNonSpace(seg dom.TextSegment) (int, bool) {
	text := seg.Text()
	off := seg.End
	for len(text) > 0 {
		r, size := utf8.DecodeLastRuneInString(text)
		if !unicode.IsSpace(r) {
			return off, true
		}
		text = text[:len(text)-size]
		off--
	}
	return 0, false
}
