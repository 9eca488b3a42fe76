// Package logging assembles structured slog loggers and formatting helpers used
// across lexcase.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so orchestrator code can tag log lines with
// case IDs, stage indexes, and request IDs. A no-op logger is provided for tests.
package logging
