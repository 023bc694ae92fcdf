// Package recorder persists agent decisions off the request path.
//
// The agent calls Record and moves on; a bounded in-process queue feeds a
// publisher goroutine that writes each decision to a NATS JetStream
// stream, and a durable consumer drains the stream into the knowledge
// store. The stream gives at-least-once delivery across restarts, and
// the store's idempotent insert absorbs replays. When the queue is full
// the recorder falls back to a synchronous publish instead of dropping
// the decision.
package recorder
