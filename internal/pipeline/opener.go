package pipeline

import (
	"context"
	"errors"
	"strconv"

	"github.com/GriffinCanCode/navigator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/navigator/internal/shared/id"
	"github.com/GriffinCanCode/navigator/internal/stream"
	"go.uber.org/zap"
)

// Opener runs requests through the registered transformers and the scheme
// open handlers. It is safe for concurrent use once configured; the
// transformers it runs decide their own safety.
type Opener struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
}

// Option configures an Opener.
type Option func(*Opener)

// WithLogger sets the logger. Pipeline stages log at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *Opener) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records opens, transport errors and dispatches.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *Opener) {
		o.metrics = m
	}
}

// WithTracer records a span for every open, nested under the span carried
// by the context.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *Opener) {
		o.tracer = t
	}
}

// WithRegistry makes the opener dispatch through an existing registry.
func WithRegistry(r *Registry) Option {
	return func(o *Opener) {
		if r != nil {
			o.registry = r
		}
	}
}

// New creates an opener with an empty registry.
func New(opts ...Option) *Opener {
	o := &Opener{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds transformers in order.
func (o *Opener) Register(ts ...Transformer) {
	for _, t := range ts {
		o.registry.Register(t)
	}
}

// Unregister removes t and reports whether it was present.
func (o *Opener) Unregister(t Transformer) bool {
	return o.registry.Unregister(t)
}

// Registry returns the underlying registry.
func (o *Opener) Registry() *Registry {
	return o.registry
}

// Logger returns the opener's logger.
func (o *Opener) Logger() *zap.Logger {
	return o.logger
}

// Metrics returns the opener's metrics, possibly nil.
func (o *Opener) Metrics() *monitoring.Metrics {
	return o.metrics
}

// Open sends req through the pipeline: request transformers, the first
// open handler that answers, then response transformers. Transport
// failures are routed through the error chain as KindTransport.
//
// Open has no recursion limit of its own; transformers that re-enter it
// (redirects, refreshes, robots fetches) bound themselves.
func (o *Opener) Open(ctx context.Context, req *Request) (*Response, error) {
	span, ctx := o.tracer.StartSpan(ctx, "pipeline.open")
	if span == nil {
		return o.open(ctx, req)
	}
	if req != nil && req.URL != nil {
		span.SetTag("method", req.EffectiveMethod())
		span.SetTag("url", req.URL.String())
	}
	resp, err := o.open(ctx, req)
	if resp != nil {
		span.SetStatus(resp.StatusCode)
	}
	span.SetError(err)
	span.Finish()
	o.tracer.Submit(span)
	return resp, err
}

func (o *Opener) open(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == nil {
		return nil, ErrNoURL
	}
	if req.ID == "" {
		req.ID = id.NewRequestID()
	}
	scheme := req.Scheme()
	tables := o.registry.Resolve()

	for _, fn := range tables.RequestChain(scheme) {
		next, err := fn(ctx, o, req)
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = next
		}
	}

	handlers := tables.OpenHandlers(scheme)
	if len(handlers) == 0 {
		return nil, &UnknownSchemeError{Scheme: scheme}
	}

	o.logger.Debug("Opening",
		zap.String("id", req.ID.String()),
		zap.String("method", req.EffectiveMethod()),
		zap.String("url", req.URL.String()))

	timer := monitoring.NewTimer(o.metrics, scheme)
	resp, err := o.openWith(ctx, handlers, req)
	if err != nil {
		timer.Stop("error", -1)
		o.metrics.RecordTransportError(scheme)
		o.logger.Debug("Transport failed",
			zap.String("id", req.ID.String()),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return o.DispatchError(ctx, scheme, KindTransport, req, nil, err)
	}
	if resp == nil {
		timer.Stop("error", -1)
		return nil, &UnknownSchemeError{Scheme: scheme}
	}
	timer.Stop(strconv.Itoa(resp.StatusCode), contentLength(resp))

	for _, fn := range tables.ResponseChain(scheme) {
		next, err := fn(ctx, o, req, resp)
		if err != nil {
			return nil, err
		}
		if next != nil {
			resp = next
		}
	}

	o.logger.Debug("Opened",
		zap.String("id", req.ID.String()),
		zap.String("url", resp.FinalURL().String()),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

func (o *Opener) openWith(ctx context.Context, handlers []OpenFunc, req *Request) (*Response, error) {
	for _, h := range handlers {
		resp, err := h(ctx, req)
		if err != nil {
			var te *TransportError
			if !errors.As(err, &te) {
				err = &TransportError{Method: req.EffectiveMethod(), URL: req.URL.String(), Err: err}
			}
			return nil, err
		}
		if resp != nil {
			if resp.Request == nil {
				resp.Request = req
			}
			if resp.URL == nil {
				resp.URL = req.URL
			}
			if resp.Body == nil {
				resp.Body = stream.FromBytes(nil)
			}
			return resp, nil
		}
	}
	return nil, nil
}

// DispatchError walks the handlers for kind, then the default handlers.
// The first handler returning a response wins; a handler error terminates
// the walk. When every handler declines the original cause is returned.
func (o *Opener) DispatchError(ctx context.Context, scheme, kind string, req *Request, resp *Response, cause error) (*Response, error) {
	for _, h := range o.registry.Resolve().ErrorHandlers(scheme, kind) {
		handled, err := h(ctx, o, req, resp, cause)
		if err != nil {
			o.metrics.RecordDispatch(kind, "failed")
			return nil, err
		}
		if handled != nil {
			o.metrics.RecordDispatch(kind, "handled")
			return handled, nil
		}
	}
	o.metrics.RecordDispatch(kind, "declined")
	return nil, cause
}

func contentLength(resp *Response) int64 {
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if resp.Body != nil && resp.Body.Exhausted() {
		return int64(resp.Body.Len())
	}
	return -1
}
