// Package page runs the highlight lifecycle against one live document.
//
// A Controller owns a parsed document the way a content script owns its
// tab: every DOM edit goes through the controller's mutex, the store is the
// source of truth, and markers are a projection that can be rebuilt at any
// time by Restore.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/anchor"
	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/paint"
	"github.com/MrSnakeDoc/hilite/internal/poll"
	"github.com/MrSnakeDoc/hilite/internal/selection"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("page controller closed")

	// ErrNotRendered means a highlight has no marker in the document.
	ErrNotRendered = errors.New("highlight is not rendered")

	// ErrPageNotRendered means a PDF page has no text layer in the document.
	ErrPageNotRendered = errors.New("pdf page is not rendered")
)

// DefaultFocusPolicy polls for a marker every 100ms, 20 times.
var DefaultFocusPolicy = poll.Policy{Interval: 100 * time.Millisecond, MaxAttempts: 20}

// PaletteSource provides the active palette.
type PaletteSource interface {
	Palette() *domain.Palette
}

type staticPalette struct{ p *domain.Palette }

func (s staticPalette) Palette() *domain.Palette { return s.p }

// Options configures a Controller. Store is required.
type Options struct {
	URL     string
	Title   string // defaults to the document <title>
	Store   store.HighlightStore
	Palette PaletteSource // defaults to the built-in palette
	Logger  logger.Logger
	Focus   poll.Policy

	Now   func() time.Time
	NewID func() string
}

// CreateRequest carries the user's choices for a new highlight.
type CreateRequest struct {
	Color    string `json:"color,omitempty"`
	Note     string `json:"note,omitempty"`
	Category string `json:"category,omitempty"`
}

// Skipped names a highlight restore could not render.
type Skipped struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// RestoreReport summarizes a Restore pass.
type RestoreReport struct {
	Rendered []string  `json:"rendered"`
	Skipped  []Skipped `json:"skipped"`
}

// Controller manages the highlights of one document.
type Controller struct {
	mu sync.Mutex

	doc     *html.Node
	url     string
	title   string
	store   store.HighlightStore
	palette PaletteSource
	painter *paint.Painter
	tooltip *Tooltip
	logger  logger.Logger
	focus   poll.Policy
	now     func() time.Time
	newID   func() string

	states  map[string]RenderState
	records map[string]*domain.Highlight
	closed  bool
}

// NewController binds a controller to doc.
func NewController(doc *html.Node, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	url := domain.NormalizeURL(opts.URL)
	log = log.With(logger.String("url", url))

	c := &Controller{
		doc:     doc,
		url:     url,
		title:   opts.Title,
		store:   opts.Store,
		palette: opts.Palette,
		painter: paint.NewPainter(log),
		tooltip: NewTooltip(doc),
		logger:  log,
		focus:   opts.Focus,
		now:     opts.Now,
		newID:   opts.NewID,
		states:  make(map[string]RenderState),
		records: make(map[string]*domain.Highlight),
	}
	if c.title == "" {
		c.title = documentTitle(doc)
	}
	if c.palette == nil {
		c.palette = staticPalette{domain.DefaultPalette()}
	}
	if c.focus.Interval <= 0 {
		c.focus = DefaultFocusPolicy
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// URL returns the normalized page URL.
func (c *Controller) URL() string { return c.url }

// Tooltip returns the document's tooltip.
func (c *Controller) Tooltip() *Tooltip { return c.tooltip }

// State returns the render state of a highlight.
func (c *Controller) State(id string) RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[id]; ok {
		return s
	}
	return StateUnrendered
}

// Create trims r, records it, paints it and saves the highlight.
//
// The range is serialized before painting so paths describe the document
// as the user saw it. If the save fails the paint is undone.
func (c *Controller) Create(ctx context.Context, r *dom.Range, req CreateRequest) (*domain.Highlight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	trimmed, err := selection.Trim(r)
	if err != nil {
		return nil, err
	}

	color, err := c.palette.Palette().Resolve(req.Color)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = domain.UncategorizedCategory
	}

	h := &domain.Highlight{
		ID:        c.newID(),
		URL:       c.url,
		Text:      trimmed.String(),
		Range:     anchor.Serialize(trimmed),
		Title:     c.title,
		CreatedAt: c.now().UTC(),
		Color:     color.Name,
		HexColor:  color.Hex,
		Note:      req.Note,
		Category:  category,
	}

	res, err := c.painter.PaintAll(paintTargets(trimmed, h.Range.Kind), paint.Marker{ID: h.ID, Color: h.HexColor})
	if err != nil {
		return nil, err
	}

	if err := c.store.SaveHighlight(ctx, h); err != nil {
		res.Undo()
		c.logger.Warn("highlight save failed, paint rolled back",
			logger.String("highlight_id", h.ID),
			logger.Error(err))
		return nil, fmt.Errorf("failed to save highlight: %w", err)
	}

	c.states[h.ID] = StateRendered
	c.records[h.ID] = h
	c.logger.Info("highlight created",
		logger.String("highlight_id", h.ID),
		logger.String("kind", string(h.Range.Kind)),
		logger.Int("markers", len(res.Markers)))

	return h, nil
}

// paintTargets splits PDF selections per text fragment so each marker sits
// inside one rendered span.
func paintTargets(r *dom.Range, kind domain.RangeKind) []*dom.Range {
	if kind != domain.RangePageText {
		return []*dom.Range{r}
	}
	segs := r.TextSegments()
	out := make([]*dom.Range, 0, len(segs))
	for _, s := range segs {
		out = append(out, dom.NewRange(s.Node, s.Start, s.Node, s.End))
	}
	return out
}

// Restore paints every stored highlight of the page that is not rendered
// yet, oldest first. Highlights that cannot be located are logged and
// skipped; their records are kept.
func (c *Controller) Restore(ctx context.Context) (RestoreReport, error) {
	highlights, err := c.store.GetHighlights(ctx, c.url)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("failed to load highlights: %w", err)
	}
	domain.SortByCreation(highlights)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return RestoreReport{}, ErrClosed
	}

	report := RestoreReport{Rendered: []string{}, Skipped: []Skipped{}}
	for _, h := range highlights {
		c.records[h.ID] = h
		if c.states[h.ID] == StateRendered {
			continue
		}
		if err := c.render(h); err != nil {
			c.states[h.ID] = StateUnrendered
			report.Skipped = append(report.Skipped, Skipped{ID: h.ID, Reason: err.Error()})
			c.logger.Warn("highlight skipped",
				logger.String("highlight_id", h.ID),
				logger.Error(err))
			continue
		}
		c.states[h.ID] = StateRendered
		report.Rendered = append(report.Rendered, h.ID)
	}

	c.logger.Info("highlights restored",
		logger.Int("rendered", len(report.Rendered)),
		logger.Int("skipped", len(report.Skipped)))

	return report, nil
}

func (c *Controller) render(h *domain.Highlight) error {
	if err := h.Range.Validate(); err != nil {
		return err
	}
	m := paint.Marker{ID: h.ID, Color: c.hexFor(h)}

	switch h.Range.Kind {
	case domain.RangeStructural:
		r, err := anchor.Rehydrate(c.doc, *h.Range.Structural)
		if err != nil {
			return err
		}
		_, err = c.painter.Paint(r, m)
		return err

	case domain.RangePageText:
		layer := anchor.TextLayer(c.doc, h.Range.PageText.PageNum)
		if layer == nil {
			return fmt.Errorf("%w: page %d", ErrPageNotRendered, h.Range.PageText.PageNum)
		}
		ranges, err := anchor.LocateText(layer, h.Text, paint.InsideMarker)
		if err != nil {
			return err
		}
		_, err = c.painter.PaintAll(ranges, m)
		return err
	}

	return fmt.Errorf("unknown range kind %q", h.Range.Kind)
}

// hexFor returns the stored display color, falling back to the palette for
// records saved without one.
func (c *Controller) hexFor(h *domain.Highlight) string {
	if h.HexColor != "" {
		return h.HexColor
	}
	p := c.palette.Palette()
	if col, err := p.Resolve(h.Color); err == nil {
		return col.Hex
	}
	col, _ := p.Resolve("")
	return col.Hex
}

// Update changes a highlight's metadata. A new color is resolved against
// the palette and repainted on live markers; note and category changes
// leave the markers alone.
func (c *Controller) Update(ctx context.Context, patch domain.HighlightPatch) (*domain.Highlight, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	if patch.Color != nil {
		col, err := c.palette.Palette().Resolve(*patch.Color)
		if err != nil {
			return nil, err
		}
		patch.Color, patch.HexColor = &col.Name, &col.Hex
	}

	h, err := c.store.UpdateHighlight(ctx, c.url, patch)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[h.ID] = h
	if patch.HexColor != nil && c.states[h.ID] == StateRendered {
		n := paint.Recolor(c.doc, h.ID, h.HexColor)
		c.logger.Debug("markers recolored",
			logger.String("highlight_id", h.ID),
			logger.Int("count", n))
	}
	if patch.Note != nil && c.tooltip.ShowingID() == h.ID {
		c.showNote(h)
	}

	return h, nil
}

// Delete removes a highlight from the store, then its markers.
// It returns the highlights left on the page.
func (c *Controller) Delete(ctx context.Context, id string) ([]*domain.Highlight, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	remaining, err := c.store.DeleteHighlight(ctx, c.url, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.painter.Remove(c.doc, id)
	c.tooltip.HideFor(id)
	c.states[id] = StateRemoved
	delete(c.records, id)

	c.logger.Info("highlight deleted",
		logger.String("highlight_id", id),
		logger.Int("remaining", len(remaining)))

	return remaining, nil
}

// Clear removes every highlight of the page.
func (c *Controller) Clear(ctx context.Context) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}

	n, err := c.store.ClearPage(ctx, c.url)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, s := range c.states {
		if s == StateRendered {
			c.painter.Remove(c.doc, id)
		}
		c.states[id] = StateRemoved
	}
	c.records = make(map[string]*domain.Highlight)
	c.tooltip.Hide()

	return n, nil
}

// Close removes every marker and the tooltip from the document. Records are
// untouched and rendered highlights go back to unrendered.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	for id, s := range c.states {
		if s == StateRendered {
			c.painter.Remove(c.doc, id)
			c.states[id] = StateUnrendered
		}
	}
	c.tooltip.Destroy()
	c.closed = true
}

// Render writes the document as HTML.
func (c *Controller) Render(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return html.Render(w, c.doc)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func documentTitle(doc *html.Node) string {
	t := dom.Find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "title"
	})
	if t == nil {
		return ""
	}
	return strings.TrimSpace(dom.TextContent(t))
}
