package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// JobName is a non-empty opaque string identifier for a job type. Equality
// is byte-exact — no normalization is performed anywhere in this package.
type JobName string

// Args holds one serialized argument value behind a self-describing textual
// encoding (JSON). The core never inspects the payload; it only ever moves
// it between Serialize and Deserialize on behalf of the registered handler.
type Args struct {
	json json.RawMessage
}

// SerializeArgs encodes v into an Args container ready to enqueue.
func SerializeArgs(v interface{}) (Args, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Args{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return Args{json: raw}, nil
}

// Deserialize decodes the held payload into dest. A mismatch between the
// enqueued type and dest surfaces as ErrDeserialize, which callers (the
// worker loop) treat identically to a handler returning failure.
func (a Args) Deserialize(dest interface{}) error {
	if err := json.Unmarshal(a.json, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return nil
}

// Raw returns the underlying encoded payload, mainly for logging.
func (a Args) Raw() string { return string(a.json) }

func (a Args) MarshalJSON() ([]byte, error) {
	if a.json == nil {
		return []byte("null"), nil
	}
	return a.json, nil
}

func (a *Args) UnmarshalJSON(data []byte) error {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	a.json = cp
	return nil
}

// QueueID is the exhaustive dispatch discriminator between the two logical
// queues a Connection manages. The dead-letter sink is not addressable by
// QueueID — it is reached only by CeilingReached/UnknownJob routing, never
// by producer enqueue.
type QueueID int

const (
	// Main is the queue producers enqueue onto.
	Main QueueID = iota
	// Retry is the queue that receives envelopes after a handler failure.
	Retry
)

func (q QueueID) String() string {
	switch q {
	case Main:
		return "main"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// JobEnvelope is the unit persisted in a queue: name, serialized args, and
// the attempt count. Envelopes are immutable once constructed — retrying
// produces a new envelope with an incremented AttemptCount rather than
// mutating the original.
type JobEnvelope struct {
	Name     JobName      `json:"name"`
	Args     Args         `json:"args"`
	Attempts AttemptCount `json:"attempts"`

	// TraceID correlates log lines across enqueue/dequeue/retry for a single
	// logical job run. It is not part of the wire-compatibility-critical
	// surface described in spec §6 — a backend is free to drop it, and a
	// zero TraceID simply means "correlate by name+args yourself".
	TraceID string `json:"trace_id,omitempty"`
}

func newEnvelope(name JobName, args Args, attempts AttemptCount) JobEnvelope {
	return JobEnvelope{
		Name:     name,
		Args:     args,
		Attempts: attempts,
		TraceID:  uuid.NewString(),
	}
}

// encode serializes the envelope to the wire format used by every backend.
func (e JobEnvelope) encode() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return raw, nil
}

func decodeEnvelope(raw []byte) (JobEnvelope, error) {
	var e JobEnvelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return JobEnvelope{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return e, nil
}
