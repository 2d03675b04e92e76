// Package config provides configuration for the navigator.
//
// Configuration is loaded from environment variables with sensible
// defaults, or from a YAML/TOML file layered over the same defaults.
//
// Configuration Sections:
//   - HTTP: user agent, timeout, rate limit, TLS, proxy, extra headers
//   - Redirect: total and distinct redirect bounds
//   - Refresh: Refresh header handling
//   - Robots, Cookies, Gzip: policy switches
//   - Logging: log level and output format
//
// Environment Variables (all prefixed with NAVIGATOR_):
//   - HTTP_USER_AGENT, HTTP_TIMEOUT, HTTP_RATE_LIMIT, HTTP_INSECURE_SKIP_VERIFY,
//     HTTP_PROXY, HTTP_HEADERS (k:v,k2:v2)
//   - REDIRECT_MAX_TOTAL, REDIRECT_MAX_DISTINCT
//   - REFRESH_ENABLED, REFRESH_MAX_PAUSE, REFRESH_HONOR_TIME
//   - ROBOTS_ENABLED, COOKIES_ENABLED, GZIP_ENABLED
//   - LOGGING_LEVEL, LOGGING_DEVELOPMENT
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Println(cfg.HTTP.UserAgent)
package config
