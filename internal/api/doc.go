// Package api defines the JSON request and response types of the daemon's
// HTTP API and converters from internal models. The daemon encodes them and
// the CLI and consumer client decode them, so neither side couples to the
// other's internals.
//
// Field names are snake_case. Timestamps are RFC3339 UTC with milliseconds.
// Progress events on the extraction stream are not defined here; they are the
// progress package's wire format.
package api
