// Package dom adds the live-range primitives browsers expose (boundary
// points, tree order, extract/surround) on top of golang.org/x/net/html trees.
//
// Offsets inside character data are counted in runes.
package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// IsCharacterData reports whether n carries text data (text or comment).
func IsCharacterData(n *html.Node) bool {
	return n != nil && (n.Type == html.TextNode || n.Type == html.CommentNode)
}

// Length returns the node length: runes for character data, child count otherwise.
func Length(n *html.Node) int {
	if IsCharacterData(n) {
		return utf8.RuneCountInString(n.Data)
	}
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// Index returns the position of n among its siblings.
func Index(n *html.Node) int {
	i := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		i++
	}
	return i
}

// ChildAt returns the i-th child of n, or nil.
func ChildAt(n *html.Node, i int) *html.Node {
	if i < 0 {
		return nil
	}
	c := n.FirstChild
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling
	}
	return c
}

// Root returns the topmost ancestor of n.
func Root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// IsInclusiveAncestor reports whether a is b or one of b's ancestors.
func IsInclusiveAncestor(a, b *html.Node) bool {
	for x := b; x != nil; x = x.Parent {
		if x == a {
			return true
		}
	}
	return false
}

// treePath returns the child indexes leading from the root to n.
func treePath(n *html.Node) []int {
	var path []int
	for ; n.Parent != nil; n = n.Parent {
		path = append(path, Index(n))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Precedes reports whether a comes strictly before b in tree order.
// An ancestor precedes its descendants.
func Precedes(a, b *html.Node) bool {
	if a == b {
		return false
	}
	pa, pb := treePath(a), treePath(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

// Next returns the node following n in tree order, staying inside scope.
func Next(n, scope *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for x := n; x != nil && x != scope; x = x.Parent {
		if x.NextSibling != nil {
			return x.NextSibling
		}
	}
	return nil
}

// Walk calls fn for n and each of its descendants in tree order.
// Returning false from fn skips the node's subtree.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// TextContent concatenates the data of every text node under n.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	Walk(n, func(x *html.Node) bool {
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		return true
	})
	return b.String()
}

// Clone copies n; when deep is set the subtree is copied too.
// The copy is detached.
func Clone(n *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	if deep {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			c.AppendChild(Clone(ch, true))
		}
	}
	return c
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// SplitText cuts the text node n at offset and inserts the tail as a new
// sibling right after n. The tail node is returned.
func SplitText(n *html.Node, offset int) *html.Node {
	head, tail := SplitRunes(n.Data, offset)
	n.Data = head
	rest := &html.Node{Type: n.Type, Data: tail}
	if n.Parent != nil {
		n.Parent.InsertBefore(rest, n.NextSibling)
	}
	return rest
}

// Normalize merges adjacent text children of n and drops empty ones.
func Normalize(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.TextNode {
			c = next
			continue
		}
		if c.Data == "" {
			n.RemoveChild(c)
			c = next
			continue
		}
		for next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			after := next.NextSibling
			n.RemoveChild(next)
			next = after
		}
		c = next
	}
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr drops attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// HasClass reports whether the class attribute of n contains name.
func HasClass(n *html.Node, name string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == name {
			return true
		}
	}
	return false
}

// Find returns the first node under root (inclusive) matching pred.
func Find(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every node under root (inclusive) matching pred, in tree order.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Body returns the <body> element of a parsed document, or nil.
func Body(doc *html.Node) *html.Node {
	return Find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "body"
	})
}

// SplitRunes splits s at the given rune offset.
func SplitRunes(s string, offset int) (string, string) {
	i := ByteOffset(s, offset)
	return s[:i], s[i:]
}

// SliceRunes returns the runes of s in [from, to).
func SliceRunes(s string, from, to int) string {
	return s[ByteOffset(s, from):ByteOffset(s, to)]
}

// ByteOffset converts a rune offset into a byte offset, clamped to len(s).
func ByteOffset(s string, runes int) int {
	if runes <= 0 {
		return 0
	}
	i := 0
	for j := range s {
		if i == runes {
			return j
		}
		i++
	}
	return len(s)
}
