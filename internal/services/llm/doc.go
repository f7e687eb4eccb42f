// Package llm is the semantic-extraction collaborator: a client for an
// OpenAI-compatible chat completion endpoint.
//
// Extract sends one assembled prompt and returns the client rules script and
// the guidelines document parsed from the reply, with token usage as reported
// by the provider. HealthCheck issues a tiny JSON-only request to verify the
// key and model.
//
// Failures are tagged with services markers so the orchestrator can decide
// whether a category failure is continuable: HTTP 429 is a rate limit,
// deadlines and network timeouts are timeouts, everything else is a
// processing error.
//
// Every call is a single attempt. A 429 reply's Retry-After is reported in
// the rate limit error; resubmitting is left to the user.
package llm
