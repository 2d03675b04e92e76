// Package policy holds the built-in pipeline transformers and the standard
// opener assembly.
//
// Request and response transformers run in ascending Order:
//
//	100  DefaultHeaders  User-Agent and configured headers
//	200  Cookies         cookie jar in and out
//	250  Gzip            Accept-Encoding and transparent decoding
//	300  HTTPEquiv       <meta http-equiv> merged into response headers
//	400  Robots          robots.txt enforcement
//	500  Referer         Referer for referer-bearing navigations
//	600  Refresh         Refresh header re-dispatched as a redirect
//	700  Redirect        3xx and refresh error handlers
//	1000 Status          non-2xx responses routed into the error chain
package policy
