package model

// Download records what happened to a single resource URL.
type Download struct {
	// URL is the resource that was fetched.
	URL string `json:"url"`

	// Path is the output file the content was written to.
	// Empty when the URL was skipped.
	Path string `json:"path,omitempty"`

	// Bytes is the number of bytes written.
	Bytes int64 `json:"bytes,omitempty"`

	// Digest is the hex SHA3-256 of the written content.
	Digest string `json:"digest,omitempty"`

	// Skipped is true when the URL has neither a .txt nor a .yaml suffix.
	Skipped bool `json:"skipped,omitempty"`

	// Error describes why the download failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the download ended with an error.
func (d Download) Failed() bool {
	return d.Error != ""
}

// Status returns a short status word for reports.
func (d Download) Status() string {
	switch {
	case d.Failed():
		return "failed"
	case d.Skipped:
		return "skipped"
	default:
		return "saved"
	}
}
