// Package main provides the entry point for the subgrab CLI.
//
// subgrab follows the newest article on a subscription site, recovers the
// encrypted payload embedded in the article, and downloads the v2ray and
// clash subscription files it links to.
//
// Usage:
//
//	subgrab run
//	subgrab run --json --history
//	subgrab schedule --cron "0 8 * * *"
//
// See --help for all available options.
package main

// main is the entry point for subgrab.
func main() {
	Execute()
}
