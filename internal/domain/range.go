package domain

import (
	"errors"
	"fmt"
)

// RangeKind discriminates the two range encodings.
type RangeKind string

const (
	// RangeStructural locates HTML selections by structural path.
	RangeStructural RangeKind = "structural"
	// RangePageText locates PDF viewer selections by page and content.
	RangePageText RangeKind = "page_text"
)

// Range is a tagged variant: Kind names which payload is set.
type Range struct {
	Kind       RangeKind        `json:"kind"`
	Structural *StructuralRange `json:"structural,omitempty"`
	PageText   *PageTextRange   `json:"pageText,omitempty"`
}

// StructuralRange stores both boundaries of an HTML range.
// Offsets count characters for text containers and children otherwise.
type StructuralRange struct {
	StartPath   string `json:"startPath"`
	StartOffset int    `json:"startOffset"`
	EndPath     string `json:"endPath"`
	EndOffset   int    `json:"endOffset"`
}

// PageTextRange stores a selection made inside a rendered PDF page.
// The offsets are local to the text nodes seen at creation and are kept
// for diagnostics only; the page is searched by the highlight text.
type PageTextRange struct {
	PageNum     int    `json:"pageNum"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	StartText   string `json:"startText,omitempty"`
	EndText     string `json:"endText,omitempty"`
}

// NewStructuralRange wraps s in a Range.
func NewStructuralRange(s StructuralRange) Range {
	return Range{Kind: RangeStructural, Structural: &s}
}

// NewPageTextRange wraps p in a Range.
func NewPageTextRange(p PageTextRange) Range {
	return Range{Kind: RangePageText, PageText: &p}
}

// Validate checks that exactly the payload named by Kind is present.
func (r Range) Validate() error {
	switch r.Kind {
	case RangeStructural:
		if r.Structural == nil || r.PageText != nil {
			return errors.New("structural range requires only the structural payload")
		}
		if r.Structural.StartPath == "" || r.Structural.EndPath == "" {
			return errors.New("structural range requires start and end paths")
		}
		if r.Structural.StartOffset < 0 || r.Structural.EndOffset < 0 {
			return errors.New("structural range offsets must not be negative")
		}
	case RangePageText:
		if r.PageText == nil || r.Structural != nil {
			return errors.New("page text range requires only the page text payload")
		}
		if r.PageText.PageNum < 1 {
			return fmt.Errorf("page number must be >= 1, got %d", r.PageText.PageNum)
		}
	default:
		return fmt.Errorf("unknown range kind %q", r.Kind)
	}
	return nil
}
