package dom

import (
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestNormalize(t *testing.T) {
	p := newElement(atom.P)
	for _, n := range []*html.Node{
		{Type: html.TextNode, Data: "a"},
		{Type: html.TextNode, Data: ""},
		{Type: html.TextNode, Data: "b"},
		newElement(atom.I),
		{Type: html.TextNode, Data: ""},
		{Type: html.TextNode, Data: "c"},
	} {
		p.AppendChild(n)
	}

	Normalize(p)

	if got := render(t, p); got != "<p>ab<i></i>c</p>" {
		t.Errorf("Normalize() = %q", got)
	}
	if Length(p) != 3 {
		t.Errorf("Normalize() left %d children, want 3", Length(p))
	}
}

func TestSplitText(t *testing.T) {
	doc := parse(t, "<p>héllo</p>")
	text := textNode(t, doc, "héllo")

	tail := SplitText(text, 2)
	if text.Data != "hé" || tail.Data != "llo" {
		t.Errorf("SplitText() = (%q, %q), want (hé, llo)", text.Data, tail.Data)
	}
	if text.NextSibling != tail {
		t.Error("tail should be inserted right after the split node")
	}
}

func TestLengthCountsRunes(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"abc", 3},
		{"héllo", 5},
		{"日本語", 3},
		{"", 0},
	}
	for _, tt := range tests {
		if got := Length(&html.Node{Type: html.TextNode, Data: tt.data}); got != tt.want {
			t.Errorf("Length(%q) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestSliceRunes(t *testing.T) {
	if got := SliceRunes("日本語テキスト", 2, 4); got != "語テ" {
		t.Errorf("SliceRunes() = %q, want 語テ", got)
	}
	if got := ByteOffset("abc", 10); got != 3 {
		t.Errorf("ByteOffset() past the end = %d, want 3", got)
	}
}

func TestPrecedes(t *testing.T) {
	doc := parse(t, "<div><p>a</p></div><p>b</p>")
	a := textNode(t, doc, "a")
	b := textNode(t, doc, "b")
	div := element(t, doc, "div")

	if !Precedes(a, b) || Precedes(b, a) {
		t.Error("a should precede b")
	}
	if !Precedes(div, a) {
		t.Error("an ancestor should precede its descendants")
	}
	if Precedes(a, a) {
		t.Error("a node does not precede itself")
	}
}

func TestCloneIsDetached(t *testing.T) {
	doc := parse(t, `<p class="x">a<b>b</b></p>`)
	p := element(t, doc, "p")

	shallow := Clone(p, false)
	if shallow.Parent != nil || shallow.FirstChild != nil {
		t.Error("shallow clone should be detached and empty")
	}
	if !HasClass(shallow, "x") {
		t.Error("clone should keep attributes")
	}

	deep := Clone(p, true)
	if TextContent(deep) != "ab" {
		t.Errorf("deep clone text = %q, want ab", TextContent(deep))
	}

	SetAttr(deep, "class", "y")
	if !HasClass(p, "x") {
		t.Error("changing the clone's attributes changed the original")
	}
}

func TestAttributes(t *testing.T) {
	n := newElement(atom.Span)
	SetAttr(n, "class", "a b")
	SetAttr(n, "hidden", "")

	if !HasClass(n, "b") || HasClass(n, "c") {
		t.Error("HasClass() mismatch")
	}
	RemoveAttr(n, "hidden")
	if _, ok := Attr(n, "hidden"); ok {
		t.Error("RemoveAttr() did not remove hidden")
	}
	if v, _ := Attr(n, "class"); v != "a b" {
		t.Errorf("Attr(class) = %q", v)
	}
}
