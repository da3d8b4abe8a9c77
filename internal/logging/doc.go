// Package logging assembles structured slog loggers and formatting helpers used
// across jimaku.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with run IDs, stages, and chunk indexes. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
