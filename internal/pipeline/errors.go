package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrRedirectLoop is matched by every *RedirectLoopError.
	ErrRedirectLoop = errors.New("redirect loop detected")
	// ErrNoURL is returned when a request has no URL.
	ErrNoURL = errors.New("request has no url")
)

// TransportError is a failure to obtain any response at all: DNS, connect,
// TLS, timeout, file not found.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// responder is implemented by errors that carry a response.
type responder interface {
	HTTPResponse() *Response
}

// HTTPError is a protocol-level failure. It carries the response so the
// caller can still read status, headers and body.
type HTTPError struct {
	Response *Response
	Msg      string
}

func (e *HTTPError) Error() string {
	msg := e.Msg
	if msg == "" && e.Response != nil {
		msg = e.Response.Status()
	}
	if e.Response != nil && e.Response.FinalURL() != nil {
		return fmt.Sprintf("http error: %s (%s)", msg, e.Response.FinalURL())
	}
	return "http error: " + msg
}

// StatusCode returns the carried status, or 0.
func (e *HTTPError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

func (e *HTTPError) HTTPResponse() *Response {
	return e.Response
}

// RedirectLoopError rejects a redirect hop that exceeds the total or the
// distinct-target bound.
type RedirectLoopError struct {
	Response    *Response
	Total       int
	Distinct    int
	MaxTotal    int
	MaxDistinct int
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("%v: %d redirects to %d distinct targets (limits %d/%d)",
		ErrRedirectLoop, e.Total, e.Distinct, e.MaxTotal, e.MaxDistinct)
}

func (e *RedirectLoopError) Unwrap() error {
	return ErrRedirectLoop
}

func (e *RedirectLoopError) HTTPResponse() *Response {
	return e.Response
}

// UnknownSchemeError is returned when no open handler serves a scheme.
type UnknownSchemeError struct {
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown url scheme %q", e.Scheme)
}

// ResponseOf extracts the response carried by err, if any.
func ResponseOf(err error) *Response {
	var r responder
	if errors.As(err, &r) {
		return r.HTTPResponse()
	}
	return nil
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
