package scrape

import "errors"

var (
	// ErrMissingLink is returned when the homepage has no article header
	// link, or the link has no usable href.
	ErrMissingLink = errors.New("article link not found on homepage")

	// ErrMissingCiphertext is returned when no inline script of the article
	// assigns an encryption array holding a quoted string.
	ErrMissingCiphertext = errors.New("encrypted payload not found in article scripts")

	// ErrNoURLsFound is returned when the decrypted text contains no
	// .txt or .yaml URL.
	ErrNoURLsFound = errors.New("no .txt or .yaml URLs found in decrypted text")
)
