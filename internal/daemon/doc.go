// Package daemon runs the long-lived Cartographer process.
//
// It owns the artifact cache, the job history store and the HTTP API under
// /api/v1, and holds a flock on the state directory so only one instance
// manages the cache at a time. Uploads are parsed and cached here, jobs are
// validated and handed to the extraction orchestrator, and their progress is
// streamed back as server-sent events. Closing a stream cancels its job.
//
// Extraction itself lives in the extraction package; this package only deals
// with startup, shutdown and the HTTP surface.
package daemon
