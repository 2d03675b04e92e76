package policy

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/navigator/internal/config"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/transport"
)

// NewOpener assembles the standard pipeline from cfg: http, https and file
// transports plus every policy the configuration enables.
func NewOpener(cfg *config.Config, opts ...pipeline.Option) (*pipeline.Opener, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := pipeline.New(opts...)
	logger := o.Logger()

	httpTransport, err := transport.NewHTTP(cfg.HTTP, transport.WithHTTPLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("http transport: %w", err)
	}
	o.Register(
		httpTransport,
		transport.NewFile(),
		NewDefaultHeaders(cfg.HTTP.UserAgent, cfg.HTTP.Headers),
		NewHTTPEquiv(),
		NewReferer(),
		NewRedirect(cfg.Redirect.MaxTotal, cfg.Redirect.MaxDistinct,
			WithRedirectMetrics(o.Metrics()),
			WithRedirectLogger(logger)),
		NewStatus(),
	)

	if cfg.Cookies.Enabled {
		jar, err := NewCookieJar()
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		o.Register(NewCookies(jar))
	}
	if cfg.Gzip.Enabled {
		o.Register(NewGzip())
	}
	if cfg.Refresh.Enabled {
		o.Register(NewRefresh(cfg.Refresh.MaxPause.Std(), cfg.Refresh.HonorTime))
	}
	if cfg.Robots.Enabled {
		o.Register(NewRobots(logger))
	}
	return o, nil
}

var (
	defaultOnce   sync.Once
	defaultOpener *pipeline.Opener
	defaultErr    error
)

// Default returns the process-wide opener, built on first use from the
// environment configuration.
func Default() (*pipeline.Opener, error) {
	defaultOnce.Do(func() {
		defaultOpener, defaultErr = NewOpener(config.LoadOrDefault())
	})
	return defaultOpener, defaultErr
}
