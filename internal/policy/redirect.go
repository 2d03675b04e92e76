package policy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/shared/id"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRedirects bounds the hops of one redirect chain.
	DefaultMaxRedirects = 20
	// DefaultMaxDistinct bounds the distinct targets of one redirect chain.
	DefaultMaxDistinct = 10
)

// redirectKinds are the error kinds Redirect handles.
var redirectKinds = []string{
	pipeline.StatusKind(http.StatusMovedPermanently),
	pipeline.StatusKind(http.StatusFound),
	pipeline.StatusKind(http.StatusSeeOther),
	pipeline.StatusKind(http.StatusTemporaryRedirect),
	pipeline.StatusKind(http.StatusPermanentRedirect),
	pipeline.KindRefresh,
}

// Redirect follows 3xx responses and refreshes by re-entering the pipeline
// with a rewritten request.
type Redirect struct {
	MaxRedirects int
	MaxDistinct  int

	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// RedirectOption configures a Redirect policy.
type RedirectOption func(*Redirect)

// WithRedirectMetrics counts followed hops.
func WithRedirectMetrics(m *monitoring.Metrics) RedirectOption {
	return func(r *Redirect) { r.metrics = m }
}

// WithRedirectLogger logs followed hops at debug level.
func WithRedirectLogger(l *zap.Logger) RedirectOption {
	return func(r *Redirect) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedirect returns a redirect policy. Non-positive bounds take the
// defaults.
func NewRedirect(maxRedirects, maxDistinct int, opts ...RedirectOption) *Redirect {
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	if maxDistinct <= 0 {
		maxDistinct = DefaultMaxDistinct
	}
	r := &Redirect{
		MaxRedirects: maxRedirects,
		MaxDistinct:  maxDistinct,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redirect) Order() int { return 700 }

func (r *Redirect) Bindings() []pipeline.Binding {
	bindings := make([]pipeline.Binding, 0, len(redirectKinds))
	for _, kind := range redirectKinds {
		bindings = append(bindings, pipeline.Binding{
			Capability: pipeline.CapError,
			Scheme:     "http",
			Kind:       kind,
			Error:      r.handle(kind),
		})
	}
	return bindings
}

func (r *Redirect) handle(kind string) pipeline.ErrorFunc {
	return func(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response, cause error) (*pipeline.Response, error) {
		if resp == nil {
			return nil, nil
		}
		location := resp.Header.Get("Location")
		if location == "" {
			location = resp.Header.Get("URI")
		}
		if location == "" {
			return nil, nil
		}
		target, err := req.URL.Parse(strings.TrimSpace(location))
		if err != nil {
			return nil, nil
		}
		if target.Fragment == "" && req.URL.Fragment != "" {
			target.Fragment = req.URL.Fragment
			target.RawFragment = req.URL.RawFragment
		}

		switch target.Scheme {
		case "http", "https", "ftp":
		default:
			return nil, &pipeline.HTTPError{Response: resp, Msg: fmt.Sprintf("redirect to %q is not allowed", target)}
		}

		next, err := r.follow(kind, req, resp, target)
		if err != nil {
			return nil, err
		}

		trail := req.Redirects
		if trail == nil {
			trail = pipeline.NewRedirectTrail()
		}
		key := target.String()
		total, distinct := trail.Peek(key)
		if total > r.MaxRedirects || distinct > r.MaxDistinct {
			return nil, &pipeline.RedirectLoopError{
				Response:    resp,
				Total:       total,
				Distinct:    distinct,
				MaxTotal:    r.MaxRedirects,
				MaxDistinct: r.MaxDistinct,
			}
		}
		trail.Visit(key)
		next.Redirects = trail

		// the redirect body is never shown; release the connection
		resp.Close()
		r.metrics.RecordRedirect(kind)
		r.logger.Debug("Following redirect",
			zap.String("kind", kind),
			zap.String("from", req.URL.String()),
			zap.String("to", key),
			zap.Int("hop", trail.Total))

		return d.Open(ctx, next)
	}
}

// follow builds the request for the next hop.
func (r *Redirect) follow(kind string, req *pipeline.Request, resp *pipeline.Response, target *url.URL) (*pipeline.Request, error) {
	method := req.EffectiveMethod()
	body := req.Body
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	temporary := kind == pipeline.StatusKind(http.StatusTemporaryRedirect) ||
		kind == pipeline.StatusKind(http.StatusPermanentRedirect)
	if temporary && body != nil {
		return nil, &pipeline.HTTPError{
			Response: resp,
			Msg:      fmt.Sprintf("%s redirect of a %s request with a body cannot be replayed", kind, method),
		}
	}

	// every followed redirect becomes a bodyless GET; HEAD stays HEAD
	if method != http.MethodHead {
		method = http.MethodGet
	}
	body = nil
	for k := range header {
		if strings.HasPrefix(k, "Content-") {
			header.Del(k)
		}
	}

	return &pipeline.Request{
		URL:                target,
		Method:             method,
		Body:               body,
		Header:             header,
		UnredirectedHeader: make(http.Header),
		OriginHost:         req.OriginHost,
		Unverifiable:       true,
		Referrer:           req.Referrer,
		Timeout:            req.Timeout,
		ID:                 id.NewRequestID(),
	}, nil
}
