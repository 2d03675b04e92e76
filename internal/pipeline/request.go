package pipeline

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/navigator/internal/shared/id"
)

// Request is one navigation request as it flows through the pipeline.
//
// Header holds headers that follow the request across redirects;
// UnredirectedHeader holds headers that are recomputed for every hop.
type Request struct {
	URL *url.URL
	// Method is optional; when empty it is GET, or POST if Body is set.
	Method string
	Body   []byte

	Header             http.Header
	UnredirectedHeader http.Header

	// OriginHost is the host of the document that started the chain.
	OriginHost string
	// Unverifiable marks requests the user did not directly ask for.
	Unverifiable bool
	// Referrer is the document URL a referer-bearing navigation came from.
	Referrer string
	// Redirects is shared by every request along one redirect chain.
	Redirects *RedirectTrail
	Timeout   time.Duration
	ID        id.RequestID
}

// NewRequest parses rawURL and builds a request. An empty method is
// resolved lazily, see EffectiveMethod.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("url %q has no scheme", rawURL)
	}
	return NewRequestURL(method, u, body), nil
}

// NewRequestURL builds a request for an already parsed URL.
func NewRequestURL(method string, u *url.URL, body []byte) *Request {
	return &Request{
		URL:                u,
		Method:             strings.ToUpper(method),
		Body:               body,
		Header:             make(http.Header),
		UnredirectedHeader: make(http.Header),
		OriginHost:         u.Hostname(),
		ID:                 id.NewRequestID(),
	}
}

// EffectiveMethod returns the explicit method or the one implied by the body.
func (r *Request) EffectiveMethod() string {
	if r.Method != "" {
		return r.Method
	}
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// Scheme returns the lowercased URL scheme.
func (r *Request) Scheme() string {
	if r.URL == nil {
		return ""
	}
	return strings.ToLower(r.URL.Scheme)
}

// Host returns the URL host including any port.
func (r *Request) Host() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Host
}

// HeaderValue looks name up in both header sets, redirectable first.
func (r *Request) HeaderValue(name string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return r.UnredirectedHeader.Get(name)
}

// HasHeader reports whether either header set carries name.
func (r *Request) HasHeader(name string) bool {
	key := http.CanonicalHeaderKey(name)
	_, a := r.Header[key]
	_, b := r.UnredirectedHeader[key]
	return a || b
}

// SetUnredirected sets a header that is dropped when the request is
// redirected.
func (r *Request) SetUnredirected(name, value string) {
	if r.UnredirectedHeader == nil {
		r.UnredirectedHeader = make(http.Header)
	}
	r.UnredirectedHeader.Set(name, value)
}

// AllHeaders merges both header sets; unredirected values win.
func (r *Request) AllHeaders() http.Header {
	all := r.Header.Clone()
	if all == nil {
		all = make(http.Header)
	}
	for k, v := range r.UnredirectedHeader {
		all[k] = append([]string(nil), v...)
	}
	return all
}

// Clone returns a deep copy. The redirect trail stays shared.
func (r *Request) Clone() *Request {
	c := *r
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		c.URL = &u
	}
	if r.Body != nil {
		c.Body = bytes.Clone(r.Body)
	}
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.UnredirectedHeader = r.UnredirectedHeader.Clone()
	if c.UnredirectedHeader == nil {
		c.UnredirectedHeader = make(http.Header)
	}
	return &c
}

// String renders the request line.
func (r *Request) String() string {
	if r.URL == nil {
		return r.EffectiveMethod() + " <nil>"
	}
	return r.EffectiveMethod() + " " + r.URL.String()
}

// RedirectTrail records the hops of one redirect chain.
type RedirectTrail struct {
	Total int
	Seen  map[string]int
}

// NewRedirectTrail returns an empty trail.
func NewRedirectTrail() *RedirectTrail {
	return &RedirectTrail{Seen: make(map[string]int)}
}

// Distinct returns the number of distinct targets visited.
func (t *RedirectTrail) Distinct() int {
	return len(t.Seen)
}

// Peek returns the counters the trail would have after visiting target,
// without recording the hop.
func (t *RedirectTrail) Peek(target string) (total, distinct int) {
	total, distinct = t.Total+1, len(t.Seen)
	if _, ok := t.Seen[target]; !ok {
		distinct++
	}
	return total, distinct
}

// Visit records a hop to target.
func (t *RedirectTrail) Visit(target string) {
	if t.Seen == nil {
		t.Seen = make(map[string]int)
	}
	t.Total++
	t.Seen[target]++
}

// Copy returns an independent copy of the trail.
func (t *RedirectTrail) Copy() *RedirectTrail {
	c := &RedirectTrail{Total: t.Total, Seen: make(map[string]int, len(t.Seen))}
	for k, v := range t.Seen {
		c.Seen[k] = v
	}
	return c
}
