package main

import (
	"context"
	"errors"

	"github.com/nao1215/subgrab/internal/bruteforce"
	"github.com/nao1215/subgrab/internal/fetch"
	"github.com/nao1215/subgrab/internal/scrape"
)

// Process exit codes, one per error kind.
const (
	exitOK                = 0
	exitError             = 1
	exitFetch             = 2
	exitMissingLink       = 3
	exitMissingCiphertext = 4
	exitExhausted         = 5
	exitNoURLs            = 6
	exitDownloadFailed    = 7
	exitInterrupted       = 130
)

// errDownloadsFailed is returned when the pipeline finished but at least
// one subscription file could not be downloaded.
var errDownloadsFailed = errors.New("one or more downloads failed")

// exitCode maps an error returned by a command to a process exit code.
// Cancellation is checked first: an interrupted request also wraps a fetch error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, scrape.ErrMissingLink):
		return exitMissingLink
	case errors.Is(err, scrape.ErrMissingCiphertext):
		return exitMissingCiphertext
	case errors.Is(err, bruteforce.ErrExhausted):
		return exitExhausted
	case errors.Is(err, scrape.ErrNoURLsFound):
		return exitNoURLs
	case errors.Is(err, errDownloadsFailed):
		return exitDownloadFailed
	case errors.Is(err, fetch.ErrFetch):
		return exitFetch
	default:
		return exitError
	}
}
