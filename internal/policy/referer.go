package policy

import (
	"context"
	"net/url"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

// Referer adds a Referer header to referer-bearing navigations. The header
// is unredirected so every redirect hop re-checks the downgrade rule.
type Referer struct{}

// NewReferer returns a referer policy.
func NewReferer() *Referer {
	return &Referer{}
}

func (r *Referer) Order() int { return 500 }

func (r *Referer) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapRequest, Scheme: "http", Request: r.apply},
		{Capability: pipeline.CapRequest, Scheme: "https", Request: r.apply},
	}
}

func (r *Referer) apply(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*pipeline.Request, error) {
	if req.Referrer == "" || req.HasHeader("Referer") {
		return req, nil
	}
	if value, ok := refererFor(req.Referrer, req.Scheme()); ok {
		req.SetUnredirected("Referer", value)
	}
	return req, nil
}

// refererFor returns the Referer value for a navigation from previous to a
// URL with scheme next, or false when none may be sent.
func refererFor(previous, next string) (string, bool) {
	if next != "http" && next != "https" {
		return "", false
	}
	ref, err := url.Parse(previous)
	if err != nil {
		return "", false
	}
	switch ref.Scheme {
	case "http":
	case "https":
		if next != "https" {
			return "", false
		}
	default:
		// file and other local documents never leak
		return "", false
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	return ref.String(), true
}
