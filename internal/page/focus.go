package page

import (
	"context"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/paint"
	"github.com/MrSnakeDoc/hilite/internal/poll"
)

// FocusAttr is set on the markers of the focused highlight.
const FocusAttr = "data-hilite-focus"

// Focus waits for the markers of id to exist, flags them as focused and
// shows the note in the tooltip. Markers may appear late, for example while
// a PDF page is still rendering, so the lookup is retried under the
// controller's focus policy before giving up with poll.ErrGaveUp.
func (c *Controller) Focus(ctx context.Context, id string) error {
	p := poll.New(c.focus).OnRetry(func(a poll.Attempt) {
		c.logger.Debug("highlight not rendered yet, retrying focus",
			logger.String("highlight_id", id),
			logger.Int("attempt", a.Number),
			logger.Duration("next_retry_in", a.Next))
	})

	err := p.Run(ctx, func(context.Context, int) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return poll.Permanent(ErrClosed)
		}

		markers := paint.FindMarkers(c.doc, id)
		if len(markers) == 0 {
			return ErrNotRendered
		}
		c.setFocus(markers)
		if h, ok := c.records[id]; ok {
			c.showNote(h)
		} else {
			c.tooltip.Hide()
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("focus failed",
			logger.String("highlight_id", id),
			logger.String("state", p.State().String()),
			logger.Int("attempts", p.Attempts()),
			logger.Error(err))
		return err
	}
	return nil
}

func (c *Controller) setFocus(markers []*html.Node) {
	for _, n := range dom.FindAll(c.doc, func(n *html.Node) bool {
		_, ok := dom.Attr(n, FocusAttr)
		return ok
	}) {
		dom.RemoveAttr(n, FocusAttr)
	}
	for _, m := range markers {
		dom.SetAttr(m, FocusAttr, "true")
	}
}

func (c *Controller) showNote(h *domain.Highlight) {
	if h.Note == "" {
		c.tooltip.Hide()
		return
	}
	c.tooltip.Show(h.ID, h.Note)
}
