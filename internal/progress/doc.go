// Package progress carries extraction lifecycle events from a running job to
// its single remote consumer.
//
// The orchestrator pushes Event values into a bounded Channel; a separate
// transport goroutine (Drain/Serve) serializes each one as a server-sent
// event frame, "data: <json>\n\n", whose JSON carries a "type"
// discriminator. Delivery is ordered and at most once. When the transport
// fails or the client disconnects, the channel is cancelled and the producer
// sees ErrClosed, which it treats exactly like an explicit cancel.
//
// Decoder is the consumer side: it reassembles frames, skips keep-alive
// comments, and reports any payload it cannot decode as a
// *MalformedFrameError holding the raw text.
package progress
