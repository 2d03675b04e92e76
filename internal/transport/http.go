package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/stream"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTP opens http and https URLs over resty. It never follows redirects,
// never decompresses and keeps no cookies: the pipeline owns all three.
type HTTP struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	logger   *zap.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithBreakers replaces the per-host circuit breakers.
func WithBreakers(g *resilience.Group) HTTPOption {
	return func(h *HTTP) {
		h.breakers = g
	}
}

// WithRoundTripper replaces the pooled transport, mostly for tests.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(h *HTTP) {
		h.resty.SetTransport(rt)
	}
}

// DefaultBreakerSettings trips a host after a run of transport failures.
// Cancellations are not held against the host.
func DefaultBreakerSettings() resilience.Settings {
	return resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
}

// NewHTTP builds the transport from the HTTP configuration section.
func NewHTTP(cfg config.HTTPConfig, opts ...HTTPOption) (*HTTP, error) {
	pooled := retryablehttp.NewClient()
	pooled.Logger = nil

	base, ok := pooled.HTTPClient.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected pooled transport %T", pooled.HTTPClient.Transport)
	}
	base = base.Clone()
	base.DisableCompression = true
	if cfg.InsecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := resty.New().
		SetTransport(base).
		SetCookieJar(nil).
		SetRetryCount(0).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	if t := cfg.Timeout.Std(); t > 0 {
		client.SetTimeout(t)
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	h := &HTTP{
		resty:    client,
		limiter:  limiter,
		breakers: resilience.NewGroup("http", DefaultBreakerSettings()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	client.SetLogger(h.logger.Sugar())
	return h, nil
}

// Order puts open handlers first; it does not affect other transformers.
func (h *HTTP) Order() int { return 0 }

// Bindings registers the open handler for http and https.
func (h *HTTP) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapOpen, Scheme: "http", Open: h.Open},
		{Capability: pipeline.CapOpen, Scheme: "https", Open: h.Open},
	}
}

// Breakers exposes the per-host breakers.
func (h *HTTP) Breakers() *resilience.Group {
	return h.breakers
}

// Open performs one round trip. Any status is a response; only failing to
// get one is an error.
func (h *HTTP) Open(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	cancel := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}

	r := h.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaderMultiValues(req.AllHeaders())
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	method := req.EffectiveMethod()
	raw, err := resilience.Do(h.breakers.Get(req.URL.Host), func() (*resty.Response, error) {
		return r.Execute(method, req.URL.String())
	})
	if err != nil {
		cancel()
		if raw != nil && raw.RawBody() != nil {
			raw.RawBody().Close()
		}
		h.logger.Debug("Round trip failed",
			zap.String("method", method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, &pipeline.TransportError{Method: method, URL: req.URL.String(), Err: err}
	}

	body := raw.RawBody()
	if body == nil {
		body = http.NoBody
	}
	resp := &pipeline.Response{
		StatusCode: raw.StatusCode(),
		Reason:     reason(raw.Status(), raw.StatusCode()),
		Header:     raw.Header().Clone(),
		URL:        req.URL,
		Body:       stream.New(&cancelOnClose{ReadCloser: body, cancel: cancel}),
		Request:    req,
	}
	h.logger.Debug("Round trip",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

// reason strips the code from a "404 Not Found" status line.
func reason(status string, code int) string {
	if rest, ok := strings.CutPrefix(status, strconv.Itoa(code)); ok {
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return http.StatusText(code)
}

// cancelOnClose ties a per-request timeout to the body's lifetime.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
