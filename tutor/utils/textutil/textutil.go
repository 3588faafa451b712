package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StripMarkup returns the visible text of s with markup removed and runs of
// whitespace collapsed. Plain text passes through unchanged apart from the
// whitespace handling. A bare "<" followed by a letter opens a tag, so "x<y"
// loses everything after the x: use the result for scoring, never in place of
// what the user wrote.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpace(s)
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return CollapseSpace(s)
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Find("script, style, noscript").Remove()
	return CollapseSpace(doc.Text())
}

// Truncate cuts s to at most n runes, appending "..." when it cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
