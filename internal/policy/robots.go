package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// ErrDisallowed is matched by every *RobotsError.
var ErrDisallowed = errors.New("request disallowed by robots.txt")

// RobotsError rejects a request that robots.txt disallows. It carries a
// synthetic 403 response so callers can treat it like a protocol error.
type RobotsError struct {
	URL      string
	Response *pipeline.Response
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDisallowed, e.URL)
}

func (e *RobotsError) Unwrap() error {
	return ErrDisallowed
}

func (e *RobotsError) HTTPResponse() *pipeline.Response {
	return e.Response
}

// Robots fetches robots.txt once per authority through the pipeline and
// rejects disallowed requests.
type Robots struct {
	mu      sync.Mutex
	rules   map[string]*robotstxt.RobotsData
	pending map[string]bool
	logger  *zap.Logger
}

// NewRobots returns a robots policy with an empty cache.
func NewRobots(logger *zap.Logger) *Robots {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Robots{
		rules:   make(map[string]*robotstxt.RobotsData),
		pending: make(map[string]bool),
		logger:  logger,
	}
}

func (r *Robots) Order() int { return 400 }

func (r *Robots) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapRequest, Scheme: "http", Request: r.apply},
		{Capability: pipeline.CapRequest, Scheme: "https", Request: r.apply},
	}
}

// Forget drops cached rules for every authority.
func (r *Robots) Forget() {
	r.mu.Lock()
	r.rules = make(map[string]*robotstxt.RobotsData)
	r.mu.Unlock()
}

func (r *Robots) apply(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*pipeline.Request, error) {
	if req.URL.Path == "/robots.txt" {
		return req, nil
	}
	rules, err := r.rulesFor(ctx, d, req)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		// robots.txt for this authority is being fetched; it may redirect
		return req, nil
	}

	agent := req.HeaderValue("User-Agent")
	if rules.TestAgent(req.URL.RequestURI(), agent) {
		return req, nil
	}
	r.logger.Info("Blocked by robots.txt",
		zap.String("url", req.URL.String()),
		zap.String("agent", agent))
	return nil, &RobotsError{
		URL:      req.URL.String(),
		Response: pipeline.NewResponse(req, http.StatusForbidden, nil, []byte(ErrDisallowed.Error())),
	}
}

func (r *Robots) rulesFor(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*robotstxt.RobotsData, error) {
	authority := req.Scheme() + "://" + req.URL.Host

	r.mu.Lock()
	rules, ok := r.rules[authority]
	fetching := r.pending[authority]
	if !ok && !fetching {
		r.pending[authority] = true
	}
	r.mu.Unlock()
	if ok || fetching {
		return rules, nil
	}

	rules, err := r.fetch(ctx, d, req)

	r.mu.Lock()
	delete(r.pending, authority)
	if err == nil {
		r.rules[authority] = rules
	}
	r.mu.Unlock()
	return rules, err
}

// fetch loads robots.txt. Missing files allow everything, server errors
// disallow everything, transport failures allow everything.
func (r *Robots) fetch(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*robotstxt.RobotsData, error) {
	target := &url.URL{Scheme: req.URL.Scheme, Host: req.URL.Host, Path: "/robots.txt"}
	robotsReq := pipeline.NewRequestURL(http.MethodGet, target, nil)
	if ua := req.HeaderValue("User-Agent"); ua != "" {
		robotsReq.Header.Set("User-Agent", ua)
	}
	robotsReq.Unverifiable = true
	robotsReq.Timeout = req.Timeout

	resp, err := d.Open(ctx, robotsReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp = pipeline.ResponseOf(err)
		if resp == nil {
			r.logger.Debug("robots.txt unavailable",
				zap.String("url", target.String()),
				zap.Error(err))
			return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
		}
	}
	defer resp.Close()

	body, err := resp.Body.Bytes()
	if err != nil {
		return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}
	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		// unparsable files allow everything
		return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}
	return rules, nil
}
