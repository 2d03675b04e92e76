package browser

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/forms"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/navigator/internal/logging"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/policy"
	"github.com/GriffinCanCode/navigator/internal/shared/id"
	"go.uber.org/zap"
)

// Opener dispatches a request through a pipeline.
type Opener interface {
	Open(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Option configures a Browser.
type Option func(*Browser)

// WithOpener sets the pipeline. Without it New builds the standard one.
func WithOpener(o Opener) Option {
	return func(b *Browser) {
		b.opener = o
	}
}

// WithParser sets the page parser.
func WithParser(p forms.Parser) Option {
	return func(b *Browser) {
		b.parser = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Browser) {
		b.logger = l
	}
}

// WithConfig sets the configuration used to build the standard pipeline.
func WithConfig(cfg *config.Config) Option {
	return func(b *Browser) {
		b.cfg = cfg
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Browser) {
		b.metrics = m
	}
}

// WithTracer traces each navigation, with the pipeline opens it causes as
// child spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(b *Browser) {
		b.tracer = t
	}
}

// Browser holds navigation state: the current request and response, the
// history stack, the parsed view of the current document and the selected
// form. It is not safe for concurrent use.
type Browser struct {
	id      id.BrowserID
	opener  Opener
	parser  forms.Parser
	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	cfg     *config.Config

	request  *pipeline.Request
	response *pipeline.Response
	history  History

	page    *forms.Page
	pageErr error
	form    *forms.Form
	closed  bool
}

// New creates a browser with no document.
func New(opts ...Option) (*Browser, error) {
	b := &Browser{id: id.NewBrowserID()}
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg == nil {
		b.cfg = config.Default()
	}
	b.logger = logging.OrNop(b.logger).With(zap.String("browser", b.id.String()))
	if b.parser == nil {
		b.parser = forms.NewParser()
	}
	if b.opener == nil {
		if b.metrics == nil {
			b.metrics = monitoring.NewMetrics()
		}
		o, err := policy.NewOpener(b.cfg,
			pipeline.WithLogger(b.logger),
			pipeline.WithMetrics(b.metrics),
			pipeline.WithTracer(b.tracer))
		if err != nil {
			return nil, fmt.Errorf("build pipeline: %w", err)
		}
		b.opener = o
	}
	return b, nil
}

// ID returns the browser's identifier.
func (b *Browser) ID() id.BrowserID {
	return b.id
}

// Metrics returns the metrics sink, which may be nil.
func (b *Browser) Metrics() *monitoring.Metrics {
	return b.metrics
}

// Open navigates to rawURL, resolved against the current document when it
// is relative.
func (b *Browser) Open(ctx context.Context, rawURL string) (*pipeline.Response, error) {
	if b.closed {
		return nil, stateError("open", ErrClosed)
	}
	u, err := b.resolve("open", rawURL)
	if err != nil {
		return nil, err
	}
	return b.navigate(ctx, "open", pipeline.NewRequestURL("", u, nil), true)
}

// OpenRequest navigates with a prepared request.
func (b *Browser) OpenRequest(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if b.closed {
		return nil, stateError("open", ErrClosed)
	}
	if req == nil || req.URL == nil {
		return nil, pipeline.ErrNoURL
	}
	if !req.URL.IsAbs() {
		u, err := b.resolve("open", req.URL.String())
		if err != nil {
			return nil, err
		}
		req = req.Clone()
		req.URL = u
	}
	return b.navigate(ctx, "open", req, true)
}

// Reload fetches the current request again. History is left alone.
func (b *Browser) Reload(ctx context.Context) (*pipeline.Response, error) {
	if b.closed {
		return nil, stateError("reload", ErrClosed)
	}
	if b.request == nil {
		return nil, stateError("reload", ErrNoDocument)
	}
	_ = b.response.Close()
	return b.navigate(ctx, "reload", b.request, false)
}

// Back returns to the document n steps back in history. A restored body
// that was released before it was fully cached is fetched again.
func (b *Browser) Back(ctx context.Context, n int) (*pipeline.Response, error) {
	if b.closed {
		return nil, stateError("back", ErrClosed)
	}
	if n < 1 {
		n = 1
	}
	req, resp, ok := b.history.Back(n)
	if !ok {
		b.metrics.RecordNavigation("back", ErrHistoryStart)
		return nil, stateError("back", ErrHistoryStart)
	}
	_ = b.response.Close()
	b.request, b.response = req, resp
	b.invalidate()
	b.metrics.SetHistoryDepth(b.history.Len())

	if resp.Body == nil || !resp.Body.Exhausted() {
		b.logger.Debug("Restored body incomplete, reloading",
			zap.String("url", req.URL.String()))
		return b.navigate(ctx, "back", req, false)
	}
	b.metrics.RecordNavigation("back", nil)
	b.logger.Info("Navigated back",
		zap.Int("steps", n),
		zap.String("url", resp.FinalURL().String()))
	return resp.Clone(), nil
}

// navigate dispatches req and adopts the outcome as the current document.
// Failed navigations still replace the current request, and responses
// carried by errors become the current response.
func (b *Browser) navigate(ctx context.Context, verb string, req *pipeline.Request, push bool) (*pipeline.Response, error) {
	if push && b.request != nil {
		b.history.Push(b.request, b.response)
		_ = b.response.Close()
	}

	span, ctx := b.tracer.StartSpan(ctx, "browser."+verb)
	span.SetTag("browser", b.id.String())
	sent := req.Clone()
	sent.ID = ""
	resp, err := b.opener.Open(ctx, sent)
	if resp != nil {
		span.SetStatus(resp.StatusCode)
	}
	span.SetError(err)
	span.Finish()
	b.tracer.Submit(span)

	b.request = req
	b.invalidate()
	if err != nil {
		resp = pipeline.ResponseOf(err)
	}
	b.response = resp
	b.metrics.RecordNavigation(verb, err)
	b.metrics.SetHistoryDepth(b.history.Len())

	fields := []zap.Field{
		zap.String("verb", verb),
		zap.String("method", req.EffectiveMethod()),
		zap.String("url", req.URL.String()),
	}
	if resp != nil {
		fields = append(fields,
			zap.Int("status", resp.StatusCode),
			zap.String("final_url", resp.FinalURL().String()))
	}
	if err != nil {
		b.logger.Info("Navigation failed", append(fields, zap.Error(err))...)
		return resp.Clone(), err
	}
	b.logger.Info("Navigated", fields...)
	return resp.Clone(), nil
}

func (b *Browser) invalidate() {
	b.page = nil
	b.pageErr = nil
	b.form = nil
}

// resolve parses rawURL, resolving relative references against the
// current document.
func (b *Browser) resolve(op, rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	base := b.currentURL()
	if base == nil {
		return nil, stateError(op, fmt.Errorf("%w: cannot resolve relative url %q", ErrNoDocument, rawURL))
	}
	return base.ResolveReference(u), nil
}

func (b *Browser) currentURL() *url.URL {
	if b.response != nil {
		if u := b.response.FinalURL(); u != nil {
			return u
		}
	}
	if b.request != nil {
		return b.request.URL
	}
	return nil
}

// Request returns the current request, or nil.
func (b *Browser) Request() *pipeline.Request {
	return b.request
}

// Response returns an alias of the current response, or nil.
func (b *Browser) Response() *pipeline.Response {
	return b.response.Clone()
}

// URL returns the URL of the current document.
func (b *Browser) URL() (string, error) {
	if b.closed {
		return "", stateError("url", ErrClosed)
	}
	u := b.currentURL()
	if u == nil {
		return "", stateError("url", ErrNoDocument)
	}
	return u.String(), nil
}

// History returns the number of documents that can be gone back to.
func (b *Browser) History() int {
	return b.history.Len()
}

// ViewingHTML reports whether the current response is an HTML document.
func (b *Browser) ViewingHTML() bool {
	return b.response != nil && isHTML(b.response)
}

// Close releases every response, current and historical. Navigation verbs
// fail with ErrClosed afterwards.
func (b *Browser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.history.Clear()
	err := b.response.Close()
	b.request, b.response = nil, nil
	b.invalidate()
	b.metrics.SetHistoryDepth(0)
	return err
}

var htmlTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

var htmlExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
}

func isHTML(resp *pipeline.Response) bool {
	if ct := resp.ContentType(); ct != "" {
		return htmlTypes[ct]
	}
	u := resp.FinalURL()
	if u == nil {
		return false
	}
	return htmlExtensions[strings.ToLower(path.Ext(u.Path))]
}
