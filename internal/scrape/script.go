package scrape

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// encryptionPattern matches an array literal assigned to encryption,
	// possibly spanning lines.
	encryptionPattern = regexp.MustCompile(`(?s)encryption = (\[.*?\])`)

	// quotedPattern matches the first double-quoted string.
	quotedPattern = regexp.MustCompile(`"([^"]*)"`)
)

// ScanCiphertext searches inline scripts in document order and returns the
// quoted string inside the first encryption array literal found.
// Only the first matching script is considered.
func ScanCiphertext(doc *goquery.Document) (string, error) {
	var (
		literal string
		found   bool
	)
	doc.Find("script:not([src])").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := encryptionPattern.FindStringSubmatch(scriptText(s))
		if m == nil {
			return true
		}
		literal, found = m[1], true
		return false
	})
	if !found {
		return "", ErrMissingCiphertext
	}

	q := quotedPattern.FindStringSubmatch(literal)
	if q == nil || strings.TrimSpace(q[1]) == "" {
		return "", ErrMissingCiphertext
	}
	return q[1], nil
}

// scriptText concatenates the raw text children of a script element.
func scriptText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}
