package policy

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"golang.org/x/net/publicsuffix"
)

// NewCookieJar returns an in-memory jar that applies public suffix rules.
func NewCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Cookies sends jar cookies with every request and stores Set-Cookie
// headers from every response, redirects included.
type Cookies struct {
	Jar http.CookieJar
}

// NewCookies returns a cookie policy over jar.
func NewCookies(jar http.CookieJar) *Cookies {
	return &Cookies{Jar: jar}
}

func (c *Cookies) Order() int { return 200 }

func (c *Cookies) Bindings() []pipeline.Binding {
	var bindings []pipeline.Binding
	for _, scheme := range []string{"http", "https"} {
		bindings = append(bindings,
			pipeline.Binding{Capability: pipeline.CapRequest, Scheme: scheme, Request: c.request},
			pipeline.Binding{Capability: pipeline.CapResponse, Scheme: scheme, Response: c.response},
		)
	}
	return bindings
}

func (c *Cookies) request(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request) (*pipeline.Request, error) {
	if req.HasHeader("Cookie") {
		return req, nil
	}
	cookies := c.Jar.Cookies(req.URL)
	if len(cookies) == 0 {
		return req, nil
	}
	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	req.SetUnredirected("Cookie", strings.Join(pairs, "; "))
	return req, nil
}

func (c *Cookies) response(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response) (*pipeline.Response, error) {
	parsed := (&http.Response{Header: resp.Header}).Cookies()
	if len(parsed) > 0 {
		c.Jar.SetCookies(resp.FinalURL(), parsed)
	}
	return resp, nil
}
