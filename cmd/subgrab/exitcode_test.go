package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nao1215/subgrab/internal/bruteforce"
	"github.com/nao1215/subgrab/internal/config"
	"github.com/nao1215/subgrab/internal/fetch"
	"github.com/nao1215/subgrab/internal/scrape"
)

// TestExitCode tests the mapping from errors to exit codes.
func TestExitCode(t *testing.T) {
	t.Parallel()

	fetchErr := &fetch.RequestError{URL: "https://site.test/", StatusCode: 502, Err: fetch.ErrUnexpectedStatus}
	cancelledFetch := &fetch.RequestError{URL: "https://site.test/", Err: context.Canceled}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, exitOK},
		{"generic error", errors.New("boom"), exitError},
		{"configuration error", fmt.Errorf("configuration error: %w", config.ErrInvalidTimeout), exitError},
		{"fetch error", fmt.Errorf("homepage: %w", fetchErr), exitFetch},
		{"missing link", fmt.Errorf("homepage: %w", scrape.ErrMissingLink), exitMissingLink},
		{"missing ciphertext", fmt.Errorf("article: %w", scrape.ErrMissingCiphertext), exitMissingCiphertext},
		{"exhausted", fmt.Errorf("%w: tried 9000 candidates", bruteforce.ErrExhausted), exitExhausted},
		{"no URLs", scrape.ErrNoURLsFound, exitNoURLs},
		{"failed downloads", fmt.Errorf("%w: 1 of 2", errDownloadsFailed), exitDownloadFailed},
		{"interrupted", context.Canceled, exitInterrupted},
		{"interrupted during fetch", cancelledFetch, exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, expected %d", tt.err, got, tt.want)
			}
		})
	}
}
