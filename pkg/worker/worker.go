package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/foreman/pkg/event"
	"github.com/shashiranjanraj/foreman/pkg/logger"
	"github.com/shashiranjanraj/foreman/pkg/metrics"
	"github.com/shashiranjanraj/foreman/pkg/queue"
)

// State is a worker's current position in the per-worker state machine
// described in spec §4.4: Idle → Executing → (Succeeded | Failed) → Idle,
// plus a terminal Stopped.
type State int

const (
	Idle State = iota
	Executing
	Succeeded
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// worker owns one goroutine bound to exactly one logical queue. It never
// steals work from the other queue.
type worker struct {
	id      int
	queue   queue.QueueID
	conn    *queue.Connection
	control <-chan Signal
	state   atomicState
}

// atomicState is a minimal concurrency-safe box for State, read by tests
// that want to observe a worker mid-execution (e.g. the stop-now scenario).
type atomicState struct {
	ch chan State
}

func newAtomicState() atomicState {
	ch := make(chan State, 1)
	ch <- Idle
	return atomicState{ch: ch}
}

func (a *atomicState) set(s State) {
	select {
	case <-a.ch:
	default:
	}
	a.ch <- s
}

func (a *atomicState) get() State {
	s := <-a.ch
	a.ch <- s
	return s
}

// run executes the dequeue/execute/retry loop until a terminal control
// signal is observed, or (when repeatOnTimeout is false) the first dequeue
// timeout. It never returns an error: every fatal condition is logged and
// ends the loop, matching spec §4.4's "fail-fast" directive for a single
// worker without taking down the process.
func (w *worker) run(conn *queue.Connection) {
	cfg := conn.Config()
	draining := false
	log := logger.L.With("worker_id", w.id, "queue", w.queue.String())

	for {
		if sig, ok := poll(w.control); ok {
			switch sig {
			case StopNow:
				log.Info("worker received stop_now")
				w.state.set(Stopped)
				return
			case Drain:
				draining = true
			}
		}

		w.state.set(Idle)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DequeueTimeout)
		result, err := conn.DequeueFrom(ctx, w.queue)
		cancel()

		if err != nil {
			var noJob *queue.NoJobError
			if errors.As(err, &noJob) {
				switch noJob.Reason {
				case queue.NoJobTimeout:
					if draining {
						log.Info("worker draining, exiting on timeout")
						w.state.set(Stopped)
						return
					}
					if !cfg.RepeatOnTimeout {
						log.Info("dequeue timed out, repeat_on_timeout=false, worker exiting")
						w.state.set(Stopped)
						return
					}
					continue
				case queue.NoJobUnknown:
					// Already routed to the dead-letter sink by DequeueFrom.
					log.Warn("unknown job name dead-lettered", "job_name", noJob.Name)
					continue
				case queue.NoJobBackendError:
					log.Error("backend error during dequeue, worker exiting", "error", noJob.Err)
					w.state.set(Stopped)
					return
				default:
					log.Error("unrecognized NoJob reason, worker exiting", "error", err)
					w.state.set(Stopped)
					return
				}
			}
			log.Error("unexpected dequeue error, worker exiting", "error", err)
			w.state.set(Stopped)
			return
		}

		if !w.runOne(conn, result) {
			w.state.set(Stopped)
			return
		}
	}
}

// runOne executes a single dequeued job, isolating the handler call so a
// panic cannot take down the worker loop, and drives the retry / ceiling /
// dead-letter decision described in spec §4.4. It builds its own per-job
// logger via logger.WithJob rather than taking the worker's ambient logger,
// since the attempt count changes mid-call (on failure, after Increment).
// It returns false when the worker must exit: a backend error while pushing
// to the retry queue is fatal to the worker.
func (w *worker) runOne(conn *queue.Connection, result queue.DequeueResult) bool {
	w.state.set(Executing)
	start := time.Now()

	_, jlog := logger.WithJob(context.Background(), string(result.Name), int(result.Attempts.N()))
	jlog = jlog.With("worker_id", w.id, "queue", w.queue.String())

	err := safeInvoke(conn, result.Handler, result.Args)

	if err == nil {
		w.state.set(Succeeded)
		metrics.RecordJob(w.queue.String(), "success", start)
		event.Fire("job.succeeded", jobOutcome{Name: string(result.Name), TraceID: result.TraceID, Attempts: result.Attempts.String()})
		jlog.Debug("job succeeded", "trace_id", result.TraceID, "duration", time.Since(start))
		return true
	}

	w.state.set(Failed)

	nextAttempts := result.Attempts.Increment()
	_, jlog = logger.WithJob(context.Background(), string(result.Name), int(nextAttempts.N()))
	jlog = jlog.With("worker_id", w.id, "queue", w.queue.String())

	if nextAttempts.CeilingReached(conn.Config().RetryLimit) {
		if dlErr := conn.DeadLetter(newDeadEnvelope(result.Name, result.Args, nextAttempts, result.TraceID), "retry_ceiling_reached"); dlErr != nil {
			jlog.Error("failed to dead-letter job after ceiling reached", "error", dlErr)
		}
		metrics.RecordJob(w.queue.String(), "deadlettered", start)
		event.Fire("job.deadlettered", jobOutcome{Name: string(result.Name), TraceID: result.TraceID, Attempts: nextAttempts.String(), Reason: "retry_ceiling_reached"})
		jlog.Warn("job dead-lettered: retry ceiling reached")
		return true
	}

	if retryErr := conn.Retry(result.Name, result.Args, nextAttempts); retryErr != nil {
		jlog.Error("failed to push retry, worker exiting", "error", retryErr)
		return false
	}
	metrics.RecordJob(w.queue.String(), "retried", start)
	event.Fire("job.failed", jobOutcome{Name: string(result.Name), TraceID: result.TraceID, Attempts: nextAttempts.String(), Err: err.Error()})
	jlog.Debug("job failed, re-enqueued for retry", "error", err)
	return true
}

type jobOutcome struct {
	Name     string
	TraceID  string
	Attempts string
	Reason   string
	Err      string
}

// safeInvoke calls handler.Handle, converting a panic into an error so the
// worker loop survives a misbehaving handler — the handler is treated as a
// regular failure, subject to the same retry/ceiling path.
func safeInvoke(conn *queue.Connection, handler queue.Handler, args queue.Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(conn, args)
}

// newDeadEnvelope reconstructs the envelope form DeadLetter expects. The
// queue package's envelope constructor is unexported, so dead-lettering
// from outside it goes through Connection.DeadLetter with the pieces the
// dequeue result already carries.
func newDeadEnvelope(name queue.JobName, args queue.Args, attempts queue.AttemptCount, traceID string) queue.JobEnvelope {
	return queue.JobEnvelope{Name: name, Args: args, Attempts: attempts, TraceID: traceID}
}
