// Package logging assembles structured slog loggers and formatting helpers used
// across Cartographer.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job code can tag log lines
// with job IDs, categories, and correlation IDs automatically. NewNop gives
// tests and wiring code a logger that cannot fail.
package logging
