package anchor

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
)

// ErrTextNotFound means the highlight text is not on the rendered page.
var ErrTextNotFound = errors.New("text not found on page")

// TextLayer returns the text layer of the given rendered page: the
// ".textLayer" element inside ".page[data-page-number=N]", or the page
// itself when it has no dedicated layer.
func TextLayer(root *html.Node, pageNum int) *html.Node {
	want := strconv.Itoa(pageNum)
	page := dom.Find(root, func(n *html.Node) bool {
		if !dom.HasClass(n, "page") {
			return false
		}
		v, ok := dom.Attr(n, "data-page-number")
		return ok && strings.TrimSpace(v) == want
	})
	if page == nil {
		return nil
	}
	if layer := dom.Find(page, func(n *html.Node) bool { return dom.HasClass(n, "textLayer") }); layer != nil {
		return layer
	}
	return page
}

// fragment is one rendered text node and its byte span in the page text.
type fragment struct {
	node  *html.Node
	start int
	end   int
	free  bool
}

// LocateText finds text in a page text layer by content. PDF rendering
// recreates every node on each render, so positions are never replayed.
//
// A match inside one fragment is preferred; otherwise the fragments are
// searched as one concatenated string and the match is cut back into one
// range per overlapped fragment, in document order. Fragments reported by
// occupied (already painted by another highlight) are avoided while an
// unoccupied occurrence exists; after that the first match wins.
func LocateText(layer *html.Node, text string, occupied func(*html.Node) bool) ([]*dom.Range, error) {
	if layer == nil || text == "" {
		return nil, ErrTextNotFound
	}

	var frags []fragment
	var page strings.Builder
	dom.Walk(layer, func(n *html.Node) bool {
		if n.Type == html.TextNode && n.Data != "" {
			start := page.Len()
			page.WriteString(n.Data)
			frags = append(frags, fragment{
				node:  n,
				start: start,
				end:   page.Len(),
				free:  occupied == nil || !occupied(n),
			})
		}
		return true
	})
	concat := page.String()

	for _, requireFree := range []bool{true, false} {
		if r := matchSingle(frags, text, requireFree); r != nil {
			return []*dom.Range{r}, nil
		}
		if rs := matchSpanning(frags, concat, text, requireFree); rs != nil {
			return rs, nil
		}
	}
	return nil, ErrTextNotFound
}

func matchSingle(frags []fragment, text string, requireFree bool) *dom.Range {
	for _, f := range frags {
		if requireFree && !f.free {
			continue
		}
		if idx := strings.Index(f.node.Data, text); idx >= 0 {
			start := utf8.RuneCountInString(f.node.Data[:idx])
			return dom.NewRange(f.node, start, f.node, start+utf8.RuneCountInString(text))
		}
	}
	return nil
}

func matchSpanning(frags []fragment, concat, text string, requireFree bool) []*dom.Range {
	for pos := 0; pos <= len(concat); {
		idx := strings.Index(concat[pos:], text)
		if idx < 0 {
			return nil
		}
		gs := pos + idx
		ge := gs + len(text)

		var ranges []*dom.Range
		usable := true
		for _, f := range frags {
			from, to := max(gs, f.start), min(ge, f.end)
			if from >= to {
				continue
			}
			if requireFree && !f.free {
				usable = false
				break
			}
			data := f.node.Data
			local := utf8.RuneCountInString(data[:from-f.start])
			width := utf8.RuneCountInString(data[from-f.start : to-f.start])
			ranges = append(ranges, dom.NewRange(f.node, local, f.node, local+width))
		}
		if usable && len(ranges) > 0 {
			return ranges
		}
		pos = gs + 1
	}
	return nil
}
