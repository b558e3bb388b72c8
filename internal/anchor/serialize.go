package anchor

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
)

// snippetLimit caps the boundary snippets kept with PDF ranges.
const snippetLimit = 50

// ErrNoPage is returned when a PDF selection has no page container ancestor.
var ErrNoPage = errors.New("selection is not inside a rendered page")

// SerializeStructural records the boundaries of r as structural paths.
func SerializeStructural(r *dom.Range) domain.StructuralRange {
	return domain.StructuralRange{
		StartPath:   AddressOf(r.StartContainer),
		StartOffset: r.StartOffset,
		EndPath:     AddressOf(r.EndContainer),
		EndOffset:   r.EndOffset,
	}
}

// SerializePageText records a selection made inside a PDF viewer page.
func SerializePageText(r *dom.Range) (domain.PageTextRange, error) {
	page, ok := PageNumber(r.StartContainer)
	if !ok {
		return domain.PageTextRange{}, ErrNoPage
	}
	return domain.PageTextRange{
		PageNum:     page,
		StartOffset: r.StartOffset,
		EndOffset:   r.EndOffset,
		StartText:   snippet(r.StartContainer),
		EndText:     snippet(r.EndContainer),
	}, nil
}

// Serialize picks the range encoding from where the selection lives:
// inside a rendered PDF page it records page and content, otherwise paths.
func Serialize(r *dom.Range) domain.Range {
	if _, ok := PageNumber(r.StartContainer); ok {
		if p, err := SerializePageText(r); err == nil {
			return domain.NewPageTextRange(p)
		}
	}
	return domain.NewStructuralRange(SerializeStructural(r))
}

// PageNumber returns the number of the page container enclosing n.
// Page containers carry class "page" and a data-page-number attribute.
func PageNumber(n *html.Node) (int, bool) {
	page := PageContainer(n)
	if page == nil {
		return 0, false
	}
	v, _ := dom.Attr(page, "data-page-number")
	num, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || num < 1 {
		return 0, false
	}
	return num, true
}

// PageContainer returns the nearest page element enclosing n, or nil.
func PageContainer(n *html.Node) *html.Node {
	for x := n; x != nil; x = x.Parent {
		if !dom.HasClass(x, "page") {
			continue
		}
		if _, ok := dom.Attr(x, "data-page-number"); ok {
			return x
		}
	}
	return nil
}

func snippet(n *html.Node) string {
	text := dom.TextContent(n)
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	return dom.SliceRunes(text, 0, snippetLimit)
}
