// Package jobs persists extraction job history in SQLite.
//
// The Store implements extraction.Recorder: the orchestrator reports each job
// start, every category outcome and the final summary, and the daemon serves
// the history over GET /api/v1/jobs. Artifacts produced by successful
// categories are kept with the job so they outlive the artifact cache TTL.
//
// Jobs still marked running when the daemon starts are moved to the
// interrupted state by MarkInterrupted. Schema changes bump schemaVersion in
// schema.go; users delete the database to adopt the new schema.
package jobs
