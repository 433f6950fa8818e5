// Package model defines the data passed between pipeline steps, report
// writers and the history database.
//
//   - Run: the outcome of one pipeline pass
//   - Download: the outcome of fetching one resource URL
//
// Both types serialize to JSON for reports and history storage. Ciphertext
// and plaintext are never serialized.
package model
