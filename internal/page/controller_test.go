package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/index"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/paint"
	"github.com/MrSnakeDoc/hilite/internal/poll"
	"github.com/MrSnakeDoc/hilite/internal/selection"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

const (
	pageURL = "https://a.test/page"

	articleHTML = `<html><head><title>Field notes</title></head><body>` +
		`<p>Some example text here</p><p>alpha beta gamma</p></body></html>`

	pdfHTML = `<html><body><div id="viewer">` +
		`<div class="page" data-page-number="1"><div class="textLayer">` +
		`<span>The quick </span><span>brown fox</span></div></div>` +
		`<div class="page" data-page-number="2"><div class="textLayer">` +
		`<span>echo</span><span> and </span><span>echo</span></div></div>` +
		`</div></body></html>`
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	return doc
}

func textNode(t *testing.T, root *html.Node, data string) *html.Node {
	t.Helper()
	n := dom.Find(root, func(n *html.Node) bool {
		return n.Type == html.TextNode && n.Data == data && !paint.InsideMarker(n)
	})
	if n == nil {
		t.Fatalf("text node %q not found", data)
	}
	return n
}

// newTestController builds a controller with a deterministic clock and ids
// h1, h2, ... one minute apart.
func newTestController(doc *html.Node, st store.HighlightStore, rawURL string) *Controller {
	seq := 0
	return NewController(doc, Options{
		URL:    rawURL,
		Store:  st,
		Logger: logger.New("error", false),
		Focus:  poll.Policy{Interval: time.Millisecond, MaxAttempts: 3},
		Now:    func() time.Time { return epoch.Add(time.Duration(seq) * time.Minute) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("h%d", seq)
		},
	})
}

func markerText(doc *html.Node, id string) string {
	var b strings.Builder
	for _, m := range paint.FindMarkers(doc, id) {
		b.WriteString(dom.TextContent(m))
	}
	return b.String()
}

type failingStore struct {
	*index.MemoryIndex
	err error
}

func (f failingStore) SaveHighlight(context.Context, *domain.Highlight) error { return f.err }

func TestCreateStoresUnderNormalizedURL(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, articleHTML)
	c := newTestController(doc, st, pageURL+"#frag")

	n := textNode(t, doc, "Some example text here")
	h, err := c.Create(ctx, dom.NewRange(n, 4, n, 18), CreateRequest{Note: "check this"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if h.Text != "example text" {
		t.Errorf("Text = %q, want trimmed %q", h.Text, "example text")
	}
	if h.URL != pageURL {
		t.Errorf("URL = %q, want %q", h.URL, pageURL)
	}
	if h.Title != "Field notes" {
		t.Errorf("Title = %q, want document title", h.Title)
	}
	if h.Color != "yellow" || h.HexColor != "#ffeb3b" {
		t.Errorf("color = %s/%s, want default yellow", h.Color, h.HexColor)
	}
	if h.Category != domain.UncategorizedCategory {
		t.Errorf("Category = %q, want %q", h.Category, domain.UncategorizedCategory)
	}
	if h.Range.Kind != domain.RangeStructural {
		t.Errorf("Range.Kind = %q, want structural", h.Range.Kind)
	}

	stored, err := st.GetHighlights(ctx, pageURL)
	if err != nil || len(stored) != 1 || stored[0].ID != h.ID {
		t.Fatalf("GetHighlights(%q) = %v, %v", pageURL, stored, err)
	}
	if got := markerText(doc, h.ID); got != "example text" {
		t.Errorf("marker text = %q, want %q", got, "example text")
	}
	if c.State(h.ID) != StateRendered {
		t.Errorf("State() = %s, want rendered", c.State(h.ID))
	}
}

func TestCreateRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		text string
		from int
		to   int
		req  CreateRequest
		want error
	}{
		{
			name: "whitespace selection",
			src:  "<p>word   </p>",
			text: "word   ",
			from: 4, to: 7,
			want: selection.ErrEmptySelection,
		},
		{
			name: "unknown color",
			src:  "<p>word</p>",
			text: "word",
			from: 0, to: 4,
			req:  CreateRequest{Color: "ultraviolet"},
			want: domain.ErrUnknownColor,
		},
		{
			name: "inside script",
			src:  "<body><script>run()</script></body>",
			text: "run()",
			from: 0, to: 3,
			want: paint.ErrRestrictedBoundary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := index.NewMemoryIndex()
			doc := parse(t, tt.src)
			c := newTestController(doc, st, pageURL)
			n := textNode(t, doc, tt.text)

			if _, err := c.Create(context.Background(), dom.NewRange(n, tt.from, n, tt.to), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("Create() = %v, want %v", err, tt.want)
			}
			if st.Count() != 0 {
				t.Errorf("store holds %d highlights, want none", st.Count())
			}
		})
	}
}

func TestCreateRollsBackOnSaveFailure(t *testing.T) {
	const splitLayerHTML = `<html><body><div class="page" data-page-number="1">` +
		`<div class="textLayer"><span>The quick </span>brown fox</div></div></body></html>`

	tests := []struct {
		name  string
		doc   string
		rng   func(t *testing.T, doc *html.Node) *dom.Range
		setup func(c *Controller)
	}{
		{
			name: "single text node",
			doc:  articleHTML,
			rng: func(t *testing.T, doc *html.Node) *dom.Range {
				n := textNode(t, doc, "Some example text here")
				return dom.NewRange(n, 5, n, 17)
			},
		},
		{
			// the span fragment is painted first, then its parent layer
			name: "pdf fragments with nested scopes",
			doc:  splitLayerHTML,
			rng: func(t *testing.T, doc *html.Node) *dom.Range {
				return dom.NewRange(textNode(t, doc, "The quick "), 4, textNode(t, doc, "brown fox"), 5)
			},
		},
		{
			name: "body scope with tooltip shown",
			doc:  articleHTML,
			rng: func(t *testing.T, doc *html.Node) *dom.Range {
				return dom.NewRange(textNode(t, doc, "Some example text here"), 5, textNode(t, doc, "alpha beta gamma"), 5)
			},
			setup: func(c *Controller) { c.Tooltip().Show("h0", "earlier note") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saveErr := errors.New("disk full")
			doc := parse(t, tt.doc)
			c := newTestController(doc, failingStore{index.NewMemoryIndex(), saveErr}, pageURL)
			if tt.setup != nil {
				tt.setup(c)
			}
			var before strings.Builder
			if err := c.Render(&before); err != nil {
				t.Fatal(err)
			}

			_, err := c.Create(context.Background(), tt.rng(t, doc), CreateRequest{})
			if !errors.Is(err, saveErr) {
				t.Fatalf("Create() = %v, want %v", err, saveErr)
			}

			var after strings.Builder
			if err := c.Render(&after); err != nil {
				t.Fatal(err)
			}
			if after.String() != before.String() {
				t.Errorf("document not rolled back:\n%s\nwant\n%s", after.String(), before.String())
			}
			if got := paint.FindMarkers(doc, "h1"); len(got) != 0 {
				t.Errorf("%d markers left after rollback", len(got))
			}
			if c.State("h1") != StateUnrendered {
				t.Errorf("State() = %s, want unrendered", c.State("h1"))
			}

			c.Tooltip().Show("h0", "shown again")
			tips := dom.FindAll(doc, func(n *html.Node) bool { return dom.HasClass(n, TooltipClass) })
			if tt.setup != nil && len(tips) != 1 {
				t.Errorf("tooltip elements = %d, want 1", len(tips))
			}
		})
	}
}

func TestRestoreReplaysInCreationOrder(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()

	doc := parse(t, articleHTML)
	c := newTestController(doc, st, pageURL)
	n := textNode(t, doc, "alpha beta gamma")
	if _, err := c.Create(ctx, dom.NewRange(n, 0, n, 5), CreateRequest{}); err != nil {
		t.Fatalf("Create(alpha) error = %v", err)
	}
	// the second selection is made after the first marker split the node
	tail := textNode(t, doc, " beta gamma")
	if _, err := c.Create(ctx, dom.NewRange(tail, 6, tail, 11), CreateRequest{Color: "green"}); err != nil {
		t.Fatalf("Create(gamma) error = %v", err)
	}

	fresh := parse(t, articleHTML)
	rc := newTestController(fresh, st, pageURL)
	report, err := rc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(report.Rendered) != 2 || len(report.Skipped) != 0 {
		t.Fatalf("Restore() = %+v, want 2 rendered", report)
	}
	if got := markerText(fresh, "h1"); got != "alpha" {
		t.Errorf("h1 marker text = %q, want alpha", got)
	}
	if got := markerText(fresh, "h2"); got != "gamma" {
		t.Errorf("h2 marker text = %q, want gamma", got)
	}

	// a second pass leaves rendered highlights alone
	again, err := rc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(again.Rendered) != 0 || len(paint.FindMarkers(fresh, "h1")) != 1 {
		t.Errorf("second Restore() = %+v, want nothing repainted", again)
	}
}

func TestRestoreSkipsUnresolvable(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()

	broken := &domain.Highlight{
		ID: "gone", URL: pageURL, Text: "vanished", Color: "yellow", HexColor: "#ffeb3b",
		CreatedAt: epoch.Add(-time.Hour),
		Range: domain.NewStructuralRange(domain.StructuralRange{
			StartPath: "/html[1]/body[1]/div[7]/text()[1]", EndPath: "/html[1]/body[1]/div[7]/text()[1]", EndOffset: 3,
		}),
	}
	good := &domain.Highlight{
		ID: "ok", URL: pageURL, Text: "example", Color: "blue", HexColor: "#90caf9",
		CreatedAt: epoch,
		Range: domain.NewStructuralRange(domain.StructuralRange{
			StartPath: "/html[1]/body[1]/p[1]/text()[1]", StartOffset: 5,
			EndPath: "/html[1]/body[1]/p[1]/text()[1]", EndOffset: 12,
		}),
	}
	for _, h := range []*domain.Highlight{broken, good} {
		if err := st.SaveHighlight(ctx, h); err != nil {
			t.Fatal(err)
		}
	}

	doc := parse(t, articleHTML)
	c := newTestController(doc, st, pageURL)
	report, err := c.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if len(report.Rendered) != 1 || report.Rendered[0] != "ok" {
		t.Errorf("Rendered = %v, want [ok]", report.Rendered)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].ID != "gone" {
		t.Errorf("Skipped = %+v, want gone", report.Skipped)
	}
	if markerText(doc, "ok") != "example" {
		t.Errorf("marker text = %q, want example", markerText(doc, "ok"))
	}
	if c.State("gone") != StateUnrendered {
		t.Errorf("State(gone) = %s, want unrendered", c.State("gone"))
	}

	stored, _ := st.GetHighlights(ctx, pageURL)
	if len(stored) != 2 {
		t.Errorf("store holds %d highlights, skipped records must be kept", len(stored))
	}
}

func TestPDFHighlightAcrossFragments(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, pdfHTML)
	c := newTestController(doc, st, pageURL)

	r := dom.NewRange(textNode(t, doc, "The quick "), 4, textNode(t, doc, "brown fox"), 5)
	h, err := c.Create(ctx, r, CreateRequest{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if h.Range.Kind != domain.RangePageText || h.Range.PageText.PageNum != 1 {
		t.Fatalf("Range = %+v, want page_text on page 1", h.Range)
	}
	if got := len(paint.FindMarkers(doc, h.ID)); got != 2 {
		t.Errorf("markers = %d, want one per fragment", got)
	}

	fresh := parse(t, pdfHTML)
	if _, err := newTestController(fresh, st, pageURL).Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	markers := paint.FindMarkers(fresh, h.ID)
	if len(markers) != 2 {
		t.Fatalf("restored markers = %d, want 2", len(markers))
	}
	if dom.TextContent(markers[0]) != "quick " || dom.TextContent(markers[1]) != "brown" {
		t.Errorf("restored fragments = %q, %q", dom.TextContent(markers[0]), dom.TextContent(markers[1]))
	}
}

func TestPDFDuplicateTextRestoresIndependently(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, pdfHTML)
	c := newTestController(doc, st, pageURL)

	echoes := dom.FindAll(doc, func(n *html.Node) bool { return n.Type == html.TextNode && n.Data == "echo" })
	if len(echoes) != 2 {
		t.Fatalf("found %d echo nodes", len(echoes))
	}
	for _, n := range echoes {
		if _, err := c.Create(ctx, dom.NewRange(n, 0, n, 4), CreateRequest{}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	fresh := parse(t, pdfHTML)
	report, err := newTestController(fresh, st, pageURL).Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(report.Rendered) != 2 {
		t.Fatalf("Restore() = %+v, want both rendered", report)
	}

	first, second := paint.FindMarkers(fresh, "h1"), paint.FindMarkers(fresh, "h2")
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("markers = %d/%d, want 1/1", len(first), len(second))
	}
	if first[0].Parent == second[0].Parent {
		t.Error("both highlights were painted on the same fragment")
	}
}

func TestPDFPageNotRendered(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, pdfHTML)
	n := textNode(t, doc, "brown fox")
	if _, err := newTestController(doc, st, pageURL).Create(ctx, dom.NewRange(n, 0, n, 5), CreateRequest{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// the viewer has not rendered any page yet
	empty := parse(t, `<html><body><div id="viewer"></div></body></html>`)
	report, err := newTestController(empty, st, pageURL).Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(report.Skipped) != 1 || !strings.Contains(report.Skipped[0].Reason, ErrPageNotRendered.Error()) {
		t.Errorf("Skipped = %+v, want page not rendered", report.Skipped)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, articleHTML)
	c := newTestController(doc, st, pageURL)
	n := textNode(t, doc, "Some example text here")
	h, err := c.Create(ctx, dom.NewRange(n, 5, n, 12), CreateRequest{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	blue, note := "Blue", "reworded"
	got, err := c.Update(ctx, domain.HighlightPatch{ID: h.ID, Color: &blue, Note: &note})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Color != "blue" || got.HexColor != "#90caf9" || got.Note != "reworded" {
		t.Errorf("Update() = %+v", got)
	}
	for _, m := range paint.FindMarkers(doc, h.ID) {
		if style, _ := dom.Attr(m, "style"); !strings.Contains(style, "#90caf9") {
			t.Errorf("marker style = %q, want recolored", style)
		}
	}

	bad := "ultraviolet"
	if _, err := c.Update(ctx, domain.HighlightPatch{ID: h.ID, Color: &bad}); !errors.Is(err, domain.ErrUnknownColor) {
		t.Errorf("Update(unknown color) = %v, want ErrUnknownColor", err)
	}
	if _, err := c.Update(ctx, domain.HighlightPatch{ID: "missing", Note: &note}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, articleHTML)
	original := dom.TextContent(doc)
	c := newTestController(doc, st, pageURL)

	n := textNode(t, doc, "Some example text here")
	a, err := c.Create(ctx, dom.NewRange(n, 5, n, 12), CreateRequest{})
	if err != nil {
		t.Fatal(err)
	}
	m := textNode(t, doc, "alpha beta gamma")
	b, err := c.Create(ctx, dom.NewRange(m, 6, m, 10), CreateRequest{})
	if err != nil {
		t.Fatal(err)
	}

	remaining, err := c.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != b.ID {
		t.Errorf("Delete() remaining = %v, want [%s]", remaining, b.ID)
	}
	if len(paint.FindMarkers(doc, a.ID)) != 0 || c.State(a.ID) != StateRemoved {
		t.Error("deleted highlight still rendered")
	}
	if _, err := c.Delete(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete() twice = %v, want ErrNotFound", err)
	}

	cleared, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if cleared != 1 || c.State(b.ID) != StateRemoved {
		t.Errorf("Clear() = %d, state %s", cleared, c.State(b.ID))
	}
	if dom.TextContent(doc) != original {
		t.Errorf("text content = %q, want original", dom.TextContent(doc))
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	st := index.NewMemoryIndex()
	doc := parse(t, articleHTML)
	c := newTestController(doc, st, pageURL)

	n := textNode(t, doc, "Some example text here")
	h, err := c.Create(ctx, dom.NewRange(n, 5, n, 12), CreateRequest{Note: "n"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Focus(ctx, h.ID); err != nil {
		t.Fatalf("Focus() error = %v", err)
	}

	c.Close()
	c.Close()

	if c.State(h.ID) != StateUnrendered {
		t.Errorf("State() = %s, want unrendered after close", c.State(h.ID))
	}
	if len(paint.FindMarkers(doc, h.ID)) != 0 {
		t.Error("markers left after Close()")
	}
	if dom.Find(doc, func(n *html.Node) bool { return dom.HasClass(n, TooltipClass) }) != nil {
		t.Error("tooltip left after Close()")
	}
	if st.Count() != 1 {
		t.Error("Close() must keep records")
	}

	if _, err := c.Create(ctx, dom.NewRange(n, 0, n, 4), CreateRequest{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Create() after Close = %v, want ErrClosed", err)
	}
	if _, err := c.Restore(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Restore() after Close = %v, want ErrClosed", err)
	}
	if err := c.Focus(ctx, h.ID); !errors.Is(err, ErrClosed) {
		t.Errorf("Focus() after Close = %v, want ErrClosed", err)
	}
}
