package policy

import (
	"context"
	"io"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html/charset"
)

// maxEquivScan bounds how much of a document is parsed for <meta> tags.
const maxEquivScan = 64 << 10

// HTTPEquiv merges <meta http-equiv> values from HTML documents into the
// response headers, so a meta refresh behaves like a Refresh header.
type HTTPEquiv struct{}

// NewHTTPEquiv returns an http-equiv policy.
func NewHTTPEquiv() *HTTPEquiv {
	return &HTTPEquiv{}
}

func (h *HTTPEquiv) Order() int { return 300 }

func (h *HTTPEquiv) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapResponse, Scheme: "http", Response: h.apply},
		{Capability: pipeline.CapResponse, Scheme: "https", Response: h.apply},
	}
}

func (h *HTTPEquiv) apply(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response) (*pipeline.Response, error) {
	switch resp.ContentType() {
	case "text/html", "application/xhtml+xml":
	default:
		return resp, nil
	}

	// a clone reads through the shared cache without moving resp's cursor
	body, err := charset.NewReader(io.LimitReader(resp.Body.Clone(), maxEquivScan), resp.Header.Get("Content-Type"))
	if err != nil {
		return resp, nil
	}
	doc, err := htmlquery.Parse(body)
	if err != nil {
		return resp, nil
	}
	for _, meta := range htmlquery.Find(doc, "//head/meta[@http-equiv]") {
		name := strings.TrimSpace(htmlquery.SelectAttr(meta, "http-equiv"))
		if name == "" {
			continue
		}
		resp.Header.Add(name, htmlquery.SelectAttr(meta, "content"))
	}
	return resp, nil
}
