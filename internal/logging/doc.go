// Package logging assembles structured slog loggers and formatting helpers used
// across reshelve.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so engine code automatically tags log
// lines with migration IDs, artist IDs, and stage names. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
