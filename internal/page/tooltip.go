package page

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MrSnakeDoc/hilite/internal/dom"
	"github.com/MrSnakeDoc/hilite/internal/paint"
)

// TooltipClass marks the tooltip element.
const TooltipClass = "hilite-tooltip"

// Tooltip is the note bubble of one document. It owns a single element
// appended to <body> on first use.
type Tooltip struct {
	doc *html.Node
	el  *html.Node
	id  string
}

// NewTooltip creates a tooltip for doc; nothing is inserted until Show.
func NewTooltip(doc *html.Node) *Tooltip {
	return &Tooltip{doc: doc}
}

// Show displays text for the highlight id.
func (t *Tooltip) Show(id, text string) {
	if t.el == nil || t.el.Parent == nil {
		t.el = t.create()
		if t.el == nil {
			return
		}
	}
	for c := t.el.FirstChild; c != nil; c = t.el.FirstChild {
		t.el.RemoveChild(c)
	}
	t.el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	dom.SetAttr(t.el, paint.IDAttr, id)
	dom.RemoveAttr(t.el, "hidden")
	t.id = id
}

// Hide hides the tooltip, keeping its element.
func (t *Tooltip) Hide() {
	if t.el == nil {
		return
	}
	dom.SetAttr(t.el, "hidden", "")
	t.id = ""
}

// HideFor hides the tooltip if it currently shows id.
func (t *Tooltip) HideFor(id string) {
	if t.id == id {
		t.Hide()
	}
}

// Destroy removes the element from the document.
func (t *Tooltip) Destroy() {
	if t.el != nil {
		dom.Detach(t.el)
	}
	t.el = nil
	t.id = ""
}

// Visible reports whether the tooltip is shown.
func (t *Tooltip) Visible() bool {
	return t.id != ""
}

// ShowingID returns the highlight id being shown, or "".
func (t *Tooltip) ShowingID() string {
	return t.id
}

// Text returns the displayed text.
func (t *Tooltip) Text() string {
	if t.el == nil {
		return ""
	}
	return dom.TextContent(t.el)
}

func (t *Tooltip) create() *html.Node {
	host := dom.Body(t.doc)
	if host == nil {
		return nil
	}
	el := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     atom.Div.String(),
		Attr: []html.Attribute{
			{Key: "class", Val: TooltipClass},
			{Key: "role", Val: "tooltip"},
		},
	}
	host.AppendChild(el)
	return el
}
