// Package scrape pulls the pieces subgrab needs out of fetched pages and
// decrypted text: the newest article link, the encrypted payload embedded
// in an inline script, and the subscription resource URLs.
//
// Each function is pure and reports absence with a sentinel error instead of
// an empty value.
package scrape
