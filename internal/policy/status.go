package policy

import (
	"context"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

// Status routes non-2xx http responses into the error chain keyed by their
// status code. Its default handler turns anything left unhandled into an
// *pipeline.HTTPError carrying the response.
type Status struct{}

// NewStatus returns a status policy.
func NewStatus() *Status {
	return &Status{}
}

func (s *Status) Order() int { return 1000 }

func (s *Status) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapResponse, Scheme: "http", Response: s.response},
		{Capability: pipeline.CapResponse, Scheme: "https", Response: s.response},
		{Capability: pipeline.CapError, Scheme: "http", Kind: pipeline.KindDefault, Error: s.fallback},
	}
}

func (s *Status) response(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response) (*pipeline.Response, error) {
	if resp.OK() {
		return resp, nil
	}
	handled, err := d.DispatchError(ctx, req.Scheme(), pipeline.StatusKind(resp.StatusCode), req, resp, &pipeline.HTTPError{Response: resp})
	if err != nil {
		return nil, err
	}
	if handled != nil {
		return handled, nil
	}
	return resp, nil
}

func (s *Status) fallback(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response, cause error) (*pipeline.Response, error) {
	if resp == nil || resp.OK() {
		return nil, nil
	}
	return nil, &pipeline.HTTPError{Response: resp}
}
