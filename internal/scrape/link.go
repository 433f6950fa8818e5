package scrape

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractArticleLink returns the href of the first element matching selector,
// resolved against the document URL when it is relative.
func ExtractArticleLink(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: selector %q matched nothing", ErrMissingLink, selector)
	}

	href, ok := sel.Attr("href")
	if !ok {
		return "", fmt.Errorf("%w: first match of %q has no href", ErrMissingLink, selector)
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: first match of %q has an empty href", ErrMissingLink, selector)
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingLink, err)
	}
	if doc.Url != nil {
		u = doc.Url.ResolveReference(u)
	}
	return u.String(), nil
}
