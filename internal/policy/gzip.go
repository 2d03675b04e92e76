package policy

import (
	"context"
	"io"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/stream"
	"github.com/klauspost/compress/gzip"
)

// Gzip advertises gzip support and decodes gzip bodies as they are read.
type Gzip struct{}

// NewGzip returns a gzip policy.
func NewGzip() *Gzip {
	return &Gzip{}
}

func (g *Gzip) Order() int { return 250 }

func (g *Gzip) Bindings() []pipeline.Binding {
	var bindings []pipeline.Binding
	for _, scheme := range []string{"http", "https"} {
		bindings = append(bindings,
			pipeline.Binding{Capability: pipeline.CapRequest, Scheme: scheme, Request: g.request},
			pipeline.Binding{Capability: pipeline.CapResponse, Scheme: scheme, Response: g.response},
		)
	}
	return bindings
}

func (g *Gzip) request(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*pipeline.Request, error) {
	if !req.HasHeader("Accept-Encoding") {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	return req, nil
}

func (g *Gzip) response(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response) (*pipeline.Response, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
	default:
		return resp, nil
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		// not really gzip; hand back the untouched bytes
		if _, err := resp.Body.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return resp, nil
	}
	resp.Body = stream.New(&gzipBody{Reader: zr, raw: resp.Body})
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	return resp, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if rerr := g.raw.Close(); err == nil {
		err = rerr
	}
	return err
}
