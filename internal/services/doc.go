// Package services defines shared utilities consumed by the extraction
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, category labels, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, so every failure can be
//     classified into validation, not found, rate limit, processing, timeout,
//     or internal without string matching.
//
// Use these helpers when wiring new components so failure classification and
// observability stay uniform across the daemon and CLI.
package services
