package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/hilite/internal/anchor"
	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/page"
	"github.com/MrSnakeDoc/hilite/internal/paint"
)

// pdfSelection picks text on a rendered PDF page by content.
type pdfSelection struct {
	PageNum int    `json:"pageNum"`
	Text    string `json:"text"`
}

type annotateRequest struct {
	URL       string                  `json:"url"`
	HTML      string                  `json:"html"`
	Selection *domain.StructuralRange `json:"selection,omitempty"`
	PDF       *pdfSelection           `json:"pdf,omitempty"`
	Color     string                  `json:"color,omitempty"`
	Note      string                  `json:"note,omitempty"`
	Category  string                  `json:"category,omitempty"`

	// Restore paints the stored highlights first. Selection paths must then
	// describe the document with those highlights painted.
	Restore bool `json:"restore,omitempty"`
}

type annotateResponse struct {
	Highlight *domain.Highlight   `json:"highlight"`
	HTML      string              `json:"html"`
	Restored  *page.RestoreReport `json:"restored,omitempty"`
}

type renderResponse struct {
	URL        string         `json:"url"`
	HTML       string         `json:"html"`
	Rendered   []string       `json:"rendered"`
	Skipped    []page.Skipped `json:"skipped"`
	Focused    bool           `json:"focused"`
	FocusError string         `json:"focusError,omitempty"`
}

func newController(d deps.Deps, doc *html.Node, url string) *page.Controller {
	return page.NewController(doc, page.Options{
		URL:     url,
		Store:   d.Store,
		Palette: d.MemoryIndex,
		Logger:  d.Logger,
		Focus:   d.FocusPolicy,
		Now:     d.TimeNow,
	})
}

// Annotate creates a highlight from a posted document and a selection in
// it, and returns the document with the new marker painted.
func Annotate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req annotateRequest
		if err := decodeJSON(w, r, d, &req); err != nil {
			writeError(w, d, err)
			return
		}
		if domain.NormalizeURL(req.URL) == "" {
			writeError(w, d, badRequest("url is required"))
			return
		}
		if (req.Selection == nil) == (req.PDF == nil) {
			writeError(w, d, badRequest("exactly one of selection or pdf is required"))
			return
		}

		doc, err := html.Parse(strings.NewReader(req.HTML))
		if err != nil {
			writeError(w, d, badRequest("invalid html: %v", err))
			return
		}

		ctrl := newController(d, doc, req.URL)
		defer ctrl.Close()

		var restored *page.RestoreReport
		if req.Restore {
			rep, err := ctrl.Restore(r.Context())
			if err != nil {
				writeError(w, d, err)
				return
			}
			restored = &rep
		}

		rng, err := selectionRange(doc, req)
		if err != nil {
			writeError(w, d, err)
			return
		}

		h, err := ctrl.Create(r.Context(), rng, page.CreateRequest{
			Color:    req.Color,
			Note:     req.Note,
			Category: req.Category,
		})
		if err != nil {
			writeError(w, d, err)
			return
		}

		var buf bytes.Buffer
		if err := ctrl.Render(&buf); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, annotateResponse{Highlight: h, HTML: buf.String(), Restored: restored})
	}
}

func selectionRange(doc *html.Node, req annotateRequest) (*dom.Range, error) {
	if req.Selection != nil {
		return anchor.Rehydrate(doc, *req.Selection)
	}

	layer := anchor.TextLayer(doc, req.PDF.PageNum)
	if layer == nil {
		return nil, page.ErrPageNotRendered
	}
	ranges, err := anchor.LocateText(layer, req.PDF.Text, paint.InsideMarker)
	if err != nil {
		return nil, err
	}
	first, last := ranges[0], ranges[len(ranges)-1]
	return dom.NewRange(first.StartContainer, first.StartOffset, last.EndContainer, last.EndOffset), nil
}

// Render restores the stored highlights of ?url= into the posted HTML.
// With ?focus=<id> the highlight is also focused; a focus failure is
// reported in the body, the restored document is still returned.
func Render(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := pageURL(r)
		if err != nil {
			writeError(w, d, err)
			return
		}
		body, err := io.ReadAll(limitBody(w, r, d))
		if err != nil {
			writeError(w, d, err)
			return
		}
		doc, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			writeError(w, d, badRequest("invalid html: %v", err))
			return
		}

		ctrl := newController(d, doc, u)
		defer ctrl.Close()

		rep, err := ctrl.Restore(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}

		resp := renderResponse{
			URL:      ctrl.URL(),
			Rendered: rep.Rendered,
			Skipped:  rep.Skipped,
		}
		if id := r.URL.Query().Get("focus"); id != "" {
			if err := focusRestored(r, ctrl, rep, id); err != nil {
				resp.FocusError = err.Error()
			} else {
				resp.Focused = true
			}
		}

		var buf bytes.Buffer
		if err := ctrl.Render(&buf); err != nil {
			writeError(w, d, err)
			return
		}
		resp.HTML = buf.String()

		d.Logger.Debug("page rendered",
			logger.String("page", resp.URL),
			logger.Int("rendered", len(rep.Rendered)),
			logger.Int("skipped", len(rep.Skipped)),
			logger.Int("bytes", buf.Len()))
		writeJSON(w, http.StatusOK, resp)
	}
}

// focusRestored focuses id on a restored document. Nothing else mutates the
// document during the request, so an id that restore did not paint fails
// at once instead of polling.
func focusRestored(r *http.Request, ctrl *page.Controller, rep page.RestoreReport, id string) error {
	if !slices.Contains(rep.Rendered, id) {
		return fmt.Errorf("%w: %s", page.ErrNotRendered, id)
	}
	return ctrl.Focus(r.Context(), id)
}
