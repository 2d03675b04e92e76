package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/forms"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// site is a test server that counts hits and records request headers.
type site struct {
	*httptest.Server
	mu       sync.Mutex
	hits     map[string]int
	referers map[string][]string
}

func newSite(t *testing.T, tls bool, routes map[string]http.HandlerFunc) *site {
	t.Helper()
	s := &site{hits: make(map[string]int), referers: make(map[string][]string)}
	mux := http.NewServeMux()
	for pattern, h := range routes {
		h := h
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.hits[r.URL.Path]++
			s.referers[r.URL.Path] = append(s.referers[r.URL.Path], r.Header.Get("Referer"))
			s.mu.Unlock()
			h(w, r)
		})
	}
	if tls {
		s.Server = httptest.NewTLSServer(mux)
	} else {
		s.Server = httptest.NewServer(mux)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) Referers(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.referers[path]...)
}

func html(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, body)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Robots.Enabled = false
	cfg.HTTP.InsecureSkipVerify = true
	return cfg
}

func newBrowser(t *testing.T, opts ...Option) *Browser {
	t.Helper()
	opts = append([]Option{WithConfig(testConfig()), WithLogger(zaptest.NewLogger(t))}, opts...)
	b, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func body(t *testing.T, resp *pipeline.Response) string {
	t.Helper()
	require.NotNil(t, resp)
	data, err := resp.Body.ReadN(-1)
	require.NoError(t, err)
	return string(data)
}

// MockOpener is a mock implementation of Opener.
type MockOpener struct {
	mock.Mock
}

// Open mocks the Open method.
func (m *MockOpener) Open(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Response), args.Error(1)
}

// MockParser is a mock implementation of forms.Parser.
type MockParser struct {
	mock.Mock
}

// Parse mocks the Parse method.
func (m *MockParser) Parse(resp *pipeline.Response) (*forms.Page, error) {
	args := m.Called(resp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forms.Page), args.Error(1)
}
