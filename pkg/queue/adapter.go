package queue

import "context"

// Adapter is the capability contract a queue backend must satisfy for a
// single logical queue (Main or Retry). Both the durable (Redis) and
// in-memory backends implement it identically from the caller's point of
// view — Connection never branches on which one it's holding.
type Adapter interface {
	// Push persists env. Ordering is total per Adapter instance: envelopes
	// emerge from Pop in push order.
	Push(env JobEnvelope) error

	// Pop blocks up to the backend's configured dequeue timeout waiting for
	// an envelope. On timeout it returns a *NoJobError with Reason
	// NoJobTimeout — not a failure. The envelope is removed from the queue
	// before Pop returns, so at-least-once delivery holds only up to a
	// worker crash between Pop and handler completion; this package adds no
	// reservation/acknowledge mechanism on top.
	Pop(ctx context.Context) (JobEnvelope, error)

	// Size reports the current queue length. Eventually consistent with
	// concurrent Push/Pop calls.
	Size() (int, error)

	// DeleteAll empties the queue.
	DeleteAll() error
}

// Backend constructs the three handles (main, retry, dead-letter) a
// Connection needs. Establish calls Init exactly once.
type Backend interface {
	Init() (main, retry Adapter, dead DeadLetterSink, err error)
}
