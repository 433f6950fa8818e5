package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/subgrab/internal/model"
)

// SimpleWriter outputs plain-text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds digests and skipped URLs to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	rule(&sb, "=")
	sb.WriteString("SUBGRAB RUN\n")
	rule(&sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(&sb, "Homepage:   %s\n", run.HomeURL)
	if run.ArticleURL != "" {
		fmt.Fprintf(&sb, "Article:    %s\n", run.ArticleURL)
	}
	fmt.Fprintf(&sb, "Started:    %s\n", run.StartedAt.Format(timeFormat))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration:   %s\n", formatDuration(d))
	}
	if run.Password != "" {
		fmt.Fprintf(&sb, "Passphrase: %s (%d attempts)\n", run.Password, run.Attempts)
	}
	fmt.Fprintf(&sb, "Status:     %s\n", statusText(run))
	if msg := errorText(run); msg != "" {
		fmt.Fprintf(&sb, "Error:      %s\n", msg)
	}
	sb.WriteString("\n")

	if len(run.Downloads) > 0 {
		rule(&sb, "-")
		sb.WriteString("DOWNLOADS\n")
		rule(&sb, "-")
		sb.WriteString("\n")
		for _, d := range run.Downloads {
			w.writeDownload(&sb, d)
		}
		sb.WriteString("\n")
	}

	if files := run.SavedFiles(); len(files) > 0 {
		sb.WriteString("Saved files:\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "  %s\n", f)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeDownload(sb *strings.Builder, d model.Download) {
	switch {
	case d.Failed():
		fmt.Fprintf(sb, "  [x] %s\n      %s\n", d.URL, d.Error)
	case d.Skipped:
		if w.verbose {
			fmt.Fprintf(sb, "  [-] %s (skipped)\n", d.URL)
		}
	default:
		fmt.Fprintf(sb, "  [+] %s -> %s (%d bytes)\n", d.URL, d.Path, d.Bytes)
		if w.verbose && d.Digest != "" {
			fmt.Fprintf(sb, "      sha3-256 %s\n", d.Digest)
		}
	}
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(runs []*model.Run) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-36s  %-23s  %-11s  %5s  %s\n", "ID", "STARTED", "STATUS", "FILES", "ARTICLE")
	for _, run := range runs {
		fmt.Fprintf(&sb, "%-36s  %-23s  %-11s  %5d  %s\n",
			run.ID,
			run.StartedAt.Format(timeFormat),
			statusText(run),
			len(run.SavedFiles()),
			run.ArticleURL,
		)
	}
	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 60))
	sb.WriteString("\n")
}
