package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/shashiranjanraj/foreman/pkg/logger"
	"github.com/shashiranjanraj/foreman/pkg/metrics"
)

// Config holds every setting that is not backend-specific. Backend-specific
// settings (Redis address, namespace, ...) live on the Backend value passed
// to Establish instead, mirroring how the donor framework keeps transport
// config separate from app-level config.
type Config struct {
	RetryLimit       uint
	WorkerCount      uint
	DequeueTimeout   time.Duration
	RepeatOnTimeout  bool
}

func (c Config) validate() error {
	if c.WorkerCount == 0 {
		return fmt.Errorf("queue: Config.WorkerCount must be >= 1")
	}
	if c.DequeueTimeout <= 0 {
		return fmt.Errorf("queue: Config.DequeueTimeout must be positive")
	}
	return nil
}

// Connection bundles an immutable Config, the two queue handles, the
// dead-letter sink, and a shared Registry reference into the one value both
// enqueuers and workers hold. It is cheap to copy (every field is either a
// value or a reference type) and safe to share across goroutines.
type Connection struct {
	cfg      Config
	main     Adapter
	retry    Adapter
	dead     DeadLetterSink
	registry *Registry
}

// Establish initializes backend and returns a ready-to-use Connection. It
// calls registry's internal freeze step so that Register can no longer be
// called once workers might start reading from it.
func Establish(cfg Config, backend Backend, registry *Registry) (*Connection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	main, retry, dead, err := backend.Init()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendInit, err)
	}

	registry.freeze()

	return &Connection{
		cfg:      cfg,
		main:     main,
		retry:    retry,
		dead:     dead,
		registry: registry,
	}, nil
}

// Config returns the immutable configuration this Connection was built with.
func (c *Connection) Config() Config { return c.cfg }

func (c *Connection) adapterFor(q QueueID) (Adapter, error) {
	switch q {
	case Main:
		return c.main, nil
	case Retry:
		return c.retry, nil
	default:
		return nil, fmt.Errorf("queue: unknown QueueId %v", q)
	}
}

// EnqueueTo builds an envelope from name/args/attempts and pushes it onto
// queue. When queue is Main, a diagnostic trace is recorded; otherwise this
// is symmetric with Retry.
func (c *Connection) EnqueueTo(queue QueueID, name JobName, args Args, attempts AttemptCount) error {
	adapter, err := c.adapterFor(queue)
	if err != nil {
		return err
	}

	env := newEnvelope(name, args, attempts)

	if queue == Main {
		logger.L.Debug("job enqueued", "job_name", string(name), "trace_id", env.TraceID, "attempts", attempts.String())
	}

	if err := adapter.Push(env); err != nil {
		return fmt.Errorf("queue: enqueue to %s: %w", queue, err)
	}
	return nil
}

// Retry is equivalent to EnqueueTo(Retry, ...). Callers must pass the
// already-incremented attempt count — Retry never increments on its own.
func (c *Connection) Retry(name JobName, args Args, attempts AttemptCount) error {
	return c.EnqueueTo(Retry, name, args, attempts)
}

// DequeueResult is the successful outcome of DequeueFrom: a resolved
// handler plus the envelope data the worker loop needs to execute and,
// on failure, re-enqueue the job.
type DequeueResult struct {
	Name     JobName
	Handler  Handler
	Args     Args
	Attempts AttemptCount
	TraceID  string
}

// DequeueFrom pops the next envelope from queue and resolves its handler.
// Name-resolution failure is reported as a *NoJobError with Reason
// NoJobUnknown and the envelope is routed to the dead-letter sink rather
// than re-pushed — see spec §4.3.
func (c *Connection) DequeueFrom(ctx context.Context, queue QueueID) (DequeueResult, error) {
	adapter, err := c.adapterFor(queue)
	if err != nil {
		return DequeueResult{}, err
	}

	env, err := adapter.Pop(ctx)
	if err != nil {
		var noJob *NoJobError
		if asNoJobError(err, &noJob) {
			return DequeueResult{}, noJob
		}
		return DequeueResult{}, noJobBackendError(err)
	}

	handler, lookupErr := c.registry.Lookup(env.Name)
	if lookupErr != nil {
		metrics.RecordJob(queue.String(), "unknown_job", time.Now())
		if dlErr := c.dead.Push(env, "unknown_job"); dlErr != nil {
			logger.L.Error("failed to dead-letter unknown job", "job_name", string(env.Name), "error", dlErr)
		}
		return DequeueResult{}, noJobUnknown(string(env.Name))
	}

	return DequeueResult{
		Name:     env.Name,
		Handler:  handler,
		Args:     env.Args,
		Attempts: env.Attempts,
		TraceID:  env.TraceID,
	}, nil
}

// DeadLetter routes env straight to the dead-letter sink, used by the
// worker loop when the retry ceiling is reached. Unknown job names are
// dead-lettered by DequeueFrom itself.
func (c *Connection) DeadLetter(env JobEnvelope, reason string) error {
	return c.dead.Push(env, reason)
}

// Size reports the current length of queue.
func (c *Connection) Size(queue QueueID) (int, error) {
	adapter, err := c.adapterFor(queue)
	if err != nil {
		return 0, err
	}
	return adapter.Size()
}

// DeadLetterSize reports the dead-letter sink's current size.
func (c *Connection) DeadLetterSize() (int, error) {
	return c.dead.Size()
}

// DeadLetterEnvelopes returns every envelope currently held in the
// dead-letter sink, for operator inspection.
func (c *Connection) DeadLetterEnvelopes() ([]JobEnvelope, error) {
	return c.dead.List()
}

// ClearDeadLetter empties the dead-letter sink only, leaving Main and Retry
// untouched. Used by operator tooling after requeuing dead-lettered
// envelopes back onto Main.
func (c *Connection) ClearDeadLetter() error {
	return c.dead.DeleteAll()
}

// IsEmpty reports whether queue currently holds zero envelopes.
func (c *Connection) IsEmpty(queue QueueID) (bool, error) {
	n, err := c.Size(queue)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// DeleteAll empties every queue identifier: Main, Retry, and the
// dead-letter sink.
func (c *Connection) DeleteAll() error {
	if err := c.main.DeleteAll(); err != nil {
		return err
	}
	if err := c.retry.DeleteAll(); err != nil {
		return err
	}
	return c.dead.DeleteAll()
}

// Registry exposes the shared, read-only-after-freeze registry, mainly so
// the worker pool can be constructed from the same Connection that owns it.
func (c *Connection) Registry() *Registry { return c.registry }

func asNoJobError(err error, target **NoJobError) bool {
	if nj, ok := err.(*NoJobError); ok {
		*target = nj
		return true
	}
	return false
}
