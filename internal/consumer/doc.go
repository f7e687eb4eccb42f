// Package consumer is the receiving end of an extraction stream.
//
// Machine folds progress events into a View (idle, running, complete, error
// or cancelled) with the set of completed categories, failure reasons and
// the final outcomes. Client posts a job to the daemon, decodes the SSE
// frames and drives a Machine; cancelling closes the connection, which the
// daemon treats as cancelling the job.
package consumer
