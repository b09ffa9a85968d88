package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AttemptCount is either Fresh (never attempted) or Attempted(n) for n >= 1.
// It is monotonically non-decreasing across a single envelope's lifetime:
// Increment() on Fresh yields Attempted(1); Increment() on Attempted(n)
// yields Attempted(n+1).
//
// The zero value is Fresh, so a plain AttemptCount{} is safe to enqueue.
type AttemptCount struct {
	attempted bool
	n         uint
}

// Fresh is the starting AttemptCount for a job that has never run.
func Fresh() AttemptCount { return AttemptCount{} }

// Attempted returns the AttemptCount for a job that has been tried n times.
// n must be >= 1 — Attempted(0) is a programmer error and panics, since the
// wire format (and the Rust original this was ported from) only ever
// distinguishes "never tried" from "tried at least once".
func Attempted(n uint) AttemptCount {
	if n == 0 {
		panic("queue: Attempted(0) is invalid — use Fresh()")
	}
	return AttemptCount{attempted: true, n: n}
}

// IsFresh reports whether the job has never been attempted.
func (a AttemptCount) IsFresh() bool { return !a.attempted }

// N returns the number of attempts so far, 0 for Fresh.
func (a AttemptCount) N() uint { return a.n }

// Increment returns the next AttemptCount in sequence. A single execution
// attempt must call this exactly once, and the result must be used both for
// the ceiling check and for the re-enqueued envelope — computing it twice
// could skip or double-count an attempt.
func (a AttemptCount) Increment() AttemptCount {
	if !a.attempted {
		return AttemptCount{attempted: true, n: 1}
	}
	return AttemptCount{attempted: true, n: a.n + 1}
}

// CeilingReached reports whether this count has exceeded retryLimit.
// Fresh never reaches the ceiling. Attempted(n) reaches it iff n > retryLimit.
func (a AttemptCount) CeilingReached(retryLimit uint) bool {
	return a.attempted && a.n > retryLimit
}

func (a AttemptCount) String() string {
	if !a.attempted {
		return "Fresh"
	}
	return fmt.Sprintf("Attempted(%d)", a.n)
}

// wire format: "Fresh" (alias "NeverRetried") or {"Attempted": n}, per spec §6.
type attemptedWire struct {
	Attempted uint `json:"Attempted"`
}

func (a AttemptCount) MarshalJSON() ([]byte, error) {
	if !a.attempted {
		return []byte(`"Fresh"`), nil
	}
	return json.Marshal(attemptedWire{Attempted: a.n})
}

func (a *AttemptCount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var tag string
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return err
		}
		switch tag {
		case "Fresh", "NeverRetried":
			*a = AttemptCount{}
			return nil
		default:
			return fmt.Errorf("queue: unknown AttemptCount tag %q", tag)
		}
	}

	var w attemptedWire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return fmt.Errorf("queue: decode AttemptCount: %w", err)
	}
	if w.Attempted == 0 {
		return fmt.Errorf("queue: Attempted(0) is invalid on the wire")
	}
	*a = AttemptCount{attempted: true, n: w.Attempted}
	return nil
}
