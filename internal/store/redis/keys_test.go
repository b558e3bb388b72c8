package redis

import "testing"

func TestPageKeyRoundTrip(t *testing.T) {
	tests := []string{
		"https://a.test/page",
		"https://a.test/path?q=1",
		"file:///tmp/doc.pdf",
	}
	for _, url := range tests {
		got, err := ExtractPageURL(PageKey(url))
		if err != nil || got != url {
			t.Errorf("ExtractPageURL(PageKey(%q)) = %q, %v", url, got, err)
		}
	}
}

func TestExtractPageURLInvalid(t *testing.T) {
	for _, key := range []string{"", KeyPrefixPage, "hilite:pa", "other:page:https://a.test"} {
		if _, err := ExtractPageURL(key); err == nil {
			t.Errorf("ExtractPageURL(%q) should fail", key)
		}
	}
}

func TestPageIndexIsOutsidePagePattern(t *testing.T) {
	// the SCAN pattern KeyPrefixPage+"*" must never match the index set
	if len(KeyAllPages) >= len(KeyPrefixPage) && KeyAllPages[:len(KeyPrefixPage)] == KeyPrefixPage {
		t.Errorf("%q starts with page prefix %q", KeyAllPages, KeyPrefixPage)
	}
}
