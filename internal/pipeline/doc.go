// Package pipeline runs the steps of a subgrab run in sequence.
//
// A run moves strictly forward: fetch the homepage and find the newest
// article, fetch the article and find the encrypted payload, brute-force the
// passphrase, parse the resource URLs and download them. Each stage is a Step
// that records its output in a model.Run. The first failing step stops the
// pipeline and its error is kept in the run.
package pipeline
