package policy

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

// DefaultMaxRefreshPause is the longest Refresh pause followed by default.
const DefaultMaxRefreshPause = 30 * time.Second

// Refresh turns a Refresh header on a 200 response into a redirect by
// dispatching it as pipeline.KindRefresh.
type Refresh struct {
	// MaxPause is the longest pause followed. Negative means no limit.
	MaxPause time.Duration
	// HonorTime makes the policy wait out the pause before following.
	HonorTime bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRefresh returns a refresh policy.
func NewRefresh(maxPause time.Duration, honorTime bool) *Refresh {
	return &Refresh{MaxPause: maxPause, HonorTime: honorTime, sleep: sleepContext}
}

func (r *Refresh) Order() int { return 600 }

func (r *Refresh) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapResponse, Scheme: "http", Response: r.apply},
		{Capability: pipeline.CapResponse, Scheme: "https", Response: r.apply},
	}
}

func (r *Refresh) apply(ctx context.Context, d pipeline.Dispatcher, req *pipeline.Request, resp *pipeline.Response) (*pipeline.Response, error) {
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	raw := resp.Header.Get("Refresh")
	if raw == "" {
		return resp, nil
	}
	pause, target, ok := parseRefresh(raw)
	if !ok {
		return resp, nil
	}
	if r.MaxPause >= 0 && pause > r.MaxPause {
		return resp, nil
	}
	if target == "" {
		target = resp.FinalURL().String()
	}
	if r.HonorTime && pause > 0 {
		if err := r.sleep(ctx, pause); err != nil {
			return nil, err
		}
	}

	alias := resp.Clone()
	alias.Header.Set("Location", target)
	handled, err := d.DispatchError(ctx, req.Scheme(), pipeline.KindRefresh, req, alias, nil)
	if err != nil {
		return nil, err
	}
	if handled != nil {
		return handled, nil
	}
	return resp, nil
}

// parseRefresh reads `5`, `5; url=/next` or `0;URL='/next'`.
func parseRefresh(raw string) (time.Duration, string, bool) {
	delay, rest, _ := strings.Cut(raw, ";")
	seconds, err := strconv.ParseFloat(strings.TrimSpace(delay), 64)
	if err != nil || seconds < 0 {
		return 0, "", false
	}
	pause := time.Duration(seconds * float64(time.Second))

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return pause, "", true
	}
	key, value, found := strings.Cut(rest, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(key), "url") {
		return 0, "", false
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return pause, value, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
