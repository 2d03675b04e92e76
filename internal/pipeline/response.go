package pipeline

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/stream"
)

// Response is a pipeline response. Body is always a replayable stream.
type Response struct {
	StatusCode int
	Reason     string
	Header     http.Header
	// URL is the final URL after any redirects.
	URL     *url.URL
	Body    *stream.Stream
	Request *Request
}

// NewResponse builds an in-memory response for req.
func NewResponse(req *Request, status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	resp := &Response{
		StatusCode: status,
		Reason:     http.StatusText(status),
		Header:     header,
		Body:       stream.FromBytes(body),
		Request:    req,
	}
	if req != nil {
		resp.URL = req.URL
	}
	return resp
}

// Clone returns an alias: the body shares the cache with an independent
// cursor, headers are copied.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = r.Body.Clone()
	}
	return &c
}

// Close releases the body source. Cached bytes stay readable.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Status renders "200 OK".
func (r *Response) Status() string {
	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.StatusCode)
	}
	return strings.TrimSpace(strconv.Itoa(r.StatusCode) + " " + reason)
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the lowercased media type without parameters.
func (r *Response) ContentType() string {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType, _, _ = strings.Cut(raw, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Charset returns the charset parameter of Content-Type, if any.
func (r *Response) Charset() string {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return params["charset"]
}

// FinalURL returns URL, falling back to the request URL.
func (r *Response) FinalURL() *url.URL {
	if r.URL != nil {
		return r.URL
	}
	if r.Request != nil {
		return r.Request.URL
	}
	return nil
}

func (r *Response) String() string {
	u := r.FinalURL()
	if u == nil {
		return r.Status()
	}
	return fmt.Sprintf("%s %s", r.Status(), u)
}
