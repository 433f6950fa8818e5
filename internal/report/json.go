package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/subgrab/internal/model"
)

// JSONWriter outputs reports in JSON format for other tools.
type JSONWriter struct {
	baseWriter

	// version is the subgrab version embedded in every document.
	version string

	// indent enables pretty-printed JSON output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run with output metadata.
type JSONReport struct {
	// Version is the subgrab version that produced the report.
	Version string `json:"version"`

	// Status is OK, PARTIAL, FAILED or INTERRUPTED.
	Status string `json:"status"`

	// SavedFiles lists the output files written by the run.
	SavedFiles []string `json:"saved_files"`

	// Run is the full run record.
	Run *model.Run `json:"run"`
}

// JSONHistory wraps a list of runs with output metadata.
type JSONHistory struct {
	Version string       `json:"version"`
	Runs    []JSONReport `json:"runs"`
}

// Write outputs the run in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(w.wrap(run))
}

// WriteHistory outputs the runs in JSON format.
func (w *JSONWriter) WriteHistory(runs []*model.Run) (int, error) {
	history := JSONHistory{
		Version: w.version,
		Runs:    make([]JSONReport, 0, len(runs)),
	}
	for _, run := range runs {
		history.Runs = append(history.Runs, w.wrap(run))
	}
	return w.writeJSON(history)
}

func (w *JSONWriter) wrap(run *model.Run) JSONReport {
	return JSONReport{
		Version:    w.version,
		Status:     statusText(run),
		SavedFiles: run.SavedFiles(),
		Run:        run,
	}
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
