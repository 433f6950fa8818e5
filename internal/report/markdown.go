package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/subgrab/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, e.g. for a README or
// a CI job summary.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("subgrab run report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + run.ID + "`"},
		{"Homepage", run.HomeURL},
		{"Started", run.StartedAt.Format(timeFormat)},
		{"Status", statusText(run)},
	}
	if run.ArticleURL != "" {
		rows = append(rows, []string{"Article", run.ArticleURL})
	}
	if run.Password != "" {
		rows = append(rows, []string{"Passphrase", "`" + run.Password + "` (" + strconv.Itoa(run.Attempts) + " attempts)"})
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", formatDuration(d)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, run)

	if len(run.Downloads) > 0 {
		md.H2("Downloads")
		md.PlainText("")
		w.writeDownloads(md, run.Downloads)
	}

	if len(run.PerformedSteps) > 0 {
		md.H2("Steps")
		md.PlainText("")
		md.BulletList(run.PerformedSteps...)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	switch {
	case run.TimedOut:
		md.Warningf("Run was interrupted: %s", errorText(run))
	case errorText(run) != "":
		md.Cautionf("Run failed: %s", errorText(run))
	case run.FailedDownloads() > 0:
		md.Warningf("%d download(s) failed.", run.FailedDownloads())
	default:
		md.Tip("All subscription files were updated.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, downloads []model.Download) {
	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		path := d.Path
		if path == "" {
			path = "-"
		}
		detail := "-"
		switch {
		case d.Failed():
			detail = truncateString(d.Error, 60)
		case d.Digest != "":
			detail = "`" + truncateString(d.Digest, 16) + "`"
		}
		rows = append(rows, []string{
			truncateString(d.URL, 60),
			path,
			d.Status(),
			formatBytes(d.Bytes),
			detail,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "File", "Status", "Bytes", "SHA3-256 / Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteHistory outputs the runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []*model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("subgrab history")
	md.PlainText("")

	if len(runs) == 0 {
		md.Note("No runs recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			"`" + run.ID + "`",
			run.StartedAt.Format(timeFormat),
			statusText(run),
			strconv.Itoa(len(run.SavedFiles())),
			run.ArticleURL,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Status", "Files", "Article"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [subgrab](https://github.com/nao1215/subgrab)*")
}
