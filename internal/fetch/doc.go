// Package fetch retrieves web pages and resource files over HTTP.
//
// A Client applies the configured timeout, User-Agent, extra headers and
// body size limit to every request, and can route all traffic through a
// SOCKS5 proxy or an embedded Tor daemon. Pages are transcoded to UTF-8 and
// returned as goquery documents so callers can query them with CSS
// selectors. Requests are never retried.
package fetch
