// Package bruteforce recovers a passphrase-encrypted payload by trying every
// decimal passphrase in a bounded numeric range.
//
// The search is ascending and the lowest candidate that yields a plausible
// plaintext (valid padding, valid UTF-8, non-empty) wins. With more than one
// worker the range is striped across goroutines; the result is the same as a
// single-worker scan.
package bruteforce
