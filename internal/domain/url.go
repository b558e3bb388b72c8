package domain

import (
	"net/url"
	"strings"
)

// NormalizeURL strips the fragment identifier so every caller derives the
// same partition key for a page.
// Example: "https://a.test/page#frag" -> "https://a.test/page"
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
