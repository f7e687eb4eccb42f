// Package preflight provides readiness checks for the filesystem paths and
// model endpoint cartographer depends on.
//
// The daemon runs RunAll at startup and logs any failure as a warning; it
// keeps serving because uploads and estimates work without the model. The
// CLI "cartographer status" command reuses the individual checks and adds a
// live CheckLLM probe on request.
package preflight
