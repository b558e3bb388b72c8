// Package anchor turns live DOM ranges into portable records and back.
//
// HTML selections are addressed structurally: each boundary container is
// named by its path from the document root. The path counts same-named
// preceding siblings, so inserting or removing such a sibling before the
// target moves the address. Records are resolved against the document they
// were taken from; drift is tolerated by clamping, not by re-anchoring.
package anchor

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	textSegment    = "text()"
	commentSegment = "comment()"
	bodyPath       = "/html[1]/body[1]"
)

// AddressOf returns the structural path of n, e.g.
// "/html[1]/body[1]/div[2]/p[1]/text()[1]".
func AddressOf(n *html.Node) string {
	var segments []string
	for x := n; x != nil && x.Type != html.DocumentNode; x = x.Parent {
		if isBody(x) {
			return bodyPath + joinSegments(segments)
		}
		name := segmentName(x)
		segments = append(segments, name+"["+strconv.Itoa(ordinal(x, name))+"]")
	}
	return joinSegments(segments)
}

// Resolve evaluates path against the document rooted at root.
// It reports false for malformed paths and for paths that no longer match.
func Resolve(root *html.Node, path string) (*html.Node, bool) {
	if root == nil || !strings.HasPrefix(path, "/") {
		return nil, false
	}
	cur := root
	for _, seg := range strings.Split(path[1:], "/") {
		name, nth, ok := parseSegment(seg)
		if !ok {
			return nil, false
		}
		cur = nthChild(cur, name, nth)
		if cur == nil {
			return nil, false
		}
	}
	if cur == root {
		return nil, false
	}
	return cur, true
}

func isBody(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "body" &&
		n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "html"
}

func segmentName(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return textSegment
	case html.CommentNode:
		return commentSegment
	case html.DoctypeNode:
		return "doctype()"
	}
	return strings.ToLower(n.Data)
}

// ordinal is the 1-based position of n among same-named preceding siblings.
func ordinal(n *html.Node, name string) int {
	pos := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if segmentName(s) == name {
			pos++
		}
	}
	return pos
}

func joinSegments(reversed []string) string {
	var b strings.Builder
	for i := len(reversed) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(reversed[i])
	}
	return b.String()
}

// parseSegment splits "name[n]" (or bare "name", meaning n = 1).
func parseSegment(seg string) (string, int, bool) {
	if seg == "" {
		return "", 0, false
	}
	open := strings.LastIndexByte(seg, '[')
	if open < 0 {
		if strings.ContainsAny(seg, "]") {
			return "", 0, false
		}
		return seg, 1, true
	}
	if open == 0 || !strings.HasSuffix(seg, "]") {
		return "", 0, false
	}
	nth, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil || nth < 1 {
		return "", 0, false
	}
	return strings.ToLower(seg[:open]), nth, true
}

func nthChild(parent *html.Node, name string, nth int) *html.Node {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if segmentName(c) != name {
			continue
		}
		nth--
		if nth == 0 {
			return c
		}
	}
	return nil
}
