package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixPage is the prefix for page hashes (highlight ID -> JSON)
	KeyPrefixPage = "hilite:page:"
	// KeyAllPages is the key for the set of all page URLs
	KeyAllPages = "hilite:pages:all"
)

// PageKey returns the Redis key for the highlights of a normalized URL
func PageKey(url string) string {
	return KeyPrefixPage + url
}

// AllPagesKey returns the key for the set of all page URLs
func AllPagesKey() string {
	return KeyAllPages
}

// ExtractPageURL extracts the page URL from a Redis key
func ExtractPageURL(key string) (string, error) {
	url, ok := strings.CutPrefix(key, KeyPrefixPage)
	if !ok || url == "" {
		return "", fmt.Errorf("invalid page key: %s", key)
	}
	return url, nil
}
