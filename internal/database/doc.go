// Package database records finished subgrab runs in a SQLite file.
//
// Recording is opt-in (--history). Each run is stored as JSON without its
// ciphertext or plaintext, and the pipeline never reads the history back;
// only the history command does.
//
// The database uses modernc.org/sqlite, a CGO-free driver, with WAL mode.
package database
