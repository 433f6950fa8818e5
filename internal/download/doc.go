// Package download fetches subscription resources and writes them to fixed
// files in the output directory: .txt URLs to v2ray.txt and .yaml URLs to
// clash.yaml. Other URLs are skipped.
//
// A failing URL is recorded and logged without stopping the others. Files
// are downloaded concurrently, but URLs that target the same file are handled
// in order, so the last one wins as it would in a sequential run.
package download
