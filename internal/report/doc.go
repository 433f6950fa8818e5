// Package report renders run results and run history.
//
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown for READMEs and CI summaries
//
// Writers implement the Writer interface and are chosen by the CLI flags.
package report
