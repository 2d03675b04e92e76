// Package logging builds the zap loggers used across the navigator.
//
// Two modes:
//   - Production: JSON on stderr
//   - Development: colored console output with callers and stack traces
//
// Components accept a *zap.Logger and fall back to zap.NewNop() via OrNop,
// so library users who never configure logging pay nothing.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("navigated", zap.String("url", u), zap.Int("status", 200))
package logging
