package policy

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testConfig is the default configuration without robots.txt lookups.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Robots.Enabled = false
	return cfg
}

func newTestOpener(t *testing.T, cfg *config.Config) (*pipeline.Opener, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	o, err := NewOpener(cfg, pipeline.WithLogger(zaptest.NewLogger(t)), pipeline.WithMetrics(metrics))
	require.NoError(t, err)
	return o, metrics
}

func newRequest(t *testing.T, method, rawURL string, body []byte) *pipeline.Request {
	t.Helper()
	req, err := pipeline.NewRequest(method, rawURL, body)
	require.NoError(t, err)
	return req
}

func readAll(t *testing.T, resp *pipeline.Response) string {
	t.Helper()
	b, err := resp.Body.ReadN(-1)
	require.NoError(t, err)
	return string(b)
}

// MockDispatcher is a mock implementation of pipeline.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

// Open mocks the Open method.
func (m *MockDispatcher) Open(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Response), args.Error(1)
}

// DispatchError mocks the DispatchError method.
func (m *MockDispatcher) DispatchError(ctx context.Context, scheme, kind string, req *pipeline.Request, resp *pipeline.Response, cause error) (*pipeline.Response, error) {
	args := m.Called(ctx, scheme, kind, req, resp, cause)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Response), args.Error(1)
}
