package policy

import (
	"context"
	"net/http"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

// DefaultHeaders adds the User-Agent and configured headers to requests
// that do not already carry them.
type DefaultHeaders struct {
	Header http.Header
}

// NewDefaultHeaders returns a headers policy. An empty userAgent sends none.
func NewDefaultHeaders(userAgent string, extra map[string]string) *DefaultHeaders {
	h := make(http.Header)
	for k, v := range extra {
		h.Set(k, v)
	}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return &DefaultHeaders{Header: h}
}

func (h *DefaultHeaders) Order() int { return 100 }

func (h *DefaultHeaders) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapRequest, Scheme: "http", Request: h.apply},
		{Capability: pipeline.CapRequest, Scheme: "https", Request: h.apply},
	}
}

func (h *DefaultHeaders) apply(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*pipeline.Request, error) {
	for k, v := range h.Header {
		if !req.HasHeader(k) {
			req.Header[k] = append([]string(nil), v...)
		}
	}
	return req, nil
}
