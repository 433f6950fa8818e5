package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/subgrab/internal/model"
)

// Writer renders run results.
type Writer interface {
	// Write outputs the report of a single run.
	Write(run *model.Run) (int, error)

	// WriteHistory outputs a list of past runs, newest first.
	WriteHistory(runs []*model.Run) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeFormat is used for every timestamp in text and Markdown reports.
const timeFormat = "2006-01-02 15:04:05 MST"

// statusText returns a one-word run status.
func statusText(run *model.Run) string {
	switch {
	case run.TimedOut:
		return "INTERRUPTED"
	case run.Error != nil || run.ErrorMessage != "":
		return "FAILED"
	case run.FailedDownloads() > 0:
		return "PARTIAL"
	default:
		return "OK"
	}
}

// errorText returns the run error as text, or "" if there is none.
func errorText(run *model.Run) string {
	if run.ErrorMessage != "" {
		return run.ErrorMessage
	}
	if run.Error != nil {
		return run.Error.Error()
	}
	return ""
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func formatBytes(n int64) string {
	return strconv.FormatInt(n, 10)
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
