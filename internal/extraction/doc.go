// Package extraction runs extraction jobs.
//
// A Job groups cached artifacts into labeled document sets (categories). The
// Orchestrator validates the job, then for each category in order fetches
// its artifacts, builds a prompt and makes exactly one call to the
// Extractor. Categories never run concurrently.
//
// Progress flows to a Sink as progress events: Started once, then per
// category CategoryProgress followed by CategoryDone or CategoryFailed, then
// JobDone or JobFailed. Rate-limit, processing, timeout and not-found
// failures stay confined to their category. Any other failure ends the job
// with JobFailed, as does a run in which every category failed.
//
// Cancellation (a cancelled context or a Sink that refuses events) is checked
// before each category. The call in flight is allowed to finish; after it no
// further category starts and no terminal event is sent.
//
// Two Extractor implementations ship with the package: NewModelExtractor
// wraps the LLM client, and DebugExtractor writes prompts to disk instead.
package extraction
