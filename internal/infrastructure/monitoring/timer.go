package monitoring

import "time"

// Timer measures one pipeline open
type Timer struct {
	start   time.Time
	metrics *Metrics
	scheme  string
}

// NewTimer starts a timer for scheme
func NewTimer(metrics *Metrics, scheme string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		scheme:  scheme,
	}
}

// Stop records the elapsed time against status and returns it
func (t *Timer) Stop(status string, size int64) time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.RecordOpen(t.scheme, status, elapsed, size)
	return elapsed
}
