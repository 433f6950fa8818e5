package model

import (
	"time"

	"github.com/google/uuid"
)

// Run is the result of one pass of the pipeline.
// Steps fill it in order; a failed step leaves the later fields empty.
type Run struct {
	// ID identifies the run in reports and the history database.
	ID string `json:"id"`

	// HomeURL is the homepage the run started from.
	HomeURL string `json:"home_url"`

	// ArticleURL is the link of the first article on the homepage.
	ArticleURL string `json:"article_url,omitempty"`

	// Ciphertext is the encrypted payload found in the article's script.
	// It only lives for the duration of the run.
	Ciphertext string `json:"-"`

	// Password is the passphrase candidate that decrypted the payload.
	Password string `json:"password,omitempty"`

	// Attempts is the number of candidates tried before the password was found.
	Attempts int `json:"attempts,omitempty"`

	// Plaintext is the decrypted, percent-decoded payload.
	Plaintext string `json:"-"`

	// ResourceURLs are the .txt/.yaml links in order of appearance.
	ResourceURLs []string `json:"resource_urls,omitempty"`

	// Downloads holds one entry per resource URL.
	Downloads []Download `json:"downloads,omitempty"`

	// PerformedSteps lists the names of the steps that were executed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as text, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// TimedOut is set when the run was cancelled between steps.
	TimedOut bool `json:"timed_out,omitempty"`
}

// NewRun creates a Run for the given homepage with a fresh ID.
func NewRun(homeURL string) *Run {
	return &Run{
		ID:             uuid.NewString(),
		HomeURL:        homeURL,
		ResourceURLs:   make([]string, 0),
		Downloads:      make([]Download, 0),
		PerformedSteps: make([]string, 0),
		StartedAt:      time.Now(),
	}
}

// Finish stamps the end time of the run.
func (r *Run) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without a pipeline error and
// without failed downloads.
func (r *Run) Succeeded() bool {
	return r.Error == nil && r.ErrorMessage == "" && r.FailedDownloads() == 0
}

// FailedDownloads counts downloads that ended with an error.
func (r *Run) FailedDownloads() int {
	n := 0
	for _, d := range r.Downloads {
		if d.Failed() {
			n++
		}
	}
	return n
}

// SavedFiles returns the distinct output paths written by the run,
// in the order they were first written.
func (r *Run) SavedFiles() []string {
	seen := make(map[string]bool)
	files := make([]string, 0, 2)
	for _, d := range r.Downloads {
		if d.Skipped || d.Failed() || seen[d.Path] {
			continue
		}
		seen[d.Path] = true
		files = append(files, d.Path)
	}
	return files
}
