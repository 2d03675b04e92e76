// Package transport provides the scheme open handlers: http and https over
// a resty client with a pooled transport, a token-bucket rate limiter and
// per-host circuit breakers, and file over the local filesystem.
package transport
