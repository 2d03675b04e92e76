/*
Package monitoring provides Prometheus metrics for the request pipeline
and the browser.

# Overview

Each Metrics value owns a private registry, so several browsers (or
tests) can create their own collectors without duplicate-registration
panics. Expose it with promhttp.HandlerFor(m.Registry(), ...) or gather
it directly.

# Collectors

  - navigator_pipeline_opens_total{scheme,status}
  - navigator_pipeline_open_duration_seconds{scheme}
  - navigator_response_size_bytes{scheme}
  - navigator_transport_errors_total{scheme}
  - navigator_error_dispatches_total{kind,outcome}
  - navigator_redirects_total{kind}
  - navigator_navigations_total{verb,outcome}
  - navigator_history_depth

# Usage

	metrics := monitoring.NewMetrics()
	timer := monitoring.NewTimer(metrics, "https")
	// ... open ...
	timer.Stop("200", resp.ContentLength)
*/
package monitoring
