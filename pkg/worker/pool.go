package worker

import (
	"sync"

	"github.com/shashiranjanraj/foreman/pkg/logger"
	"github.com/shashiranjanraj/foreman/pkg/metrics"
	"github.com/shashiranjanraj/foreman/pkg/queue"
)

// Pool spawns Config.WorkerCount workers bound to the Main queue plus
// exactly one worker bound to the Retry queue, and owns the lifecycle
// control broadcast shared by all of them. There is no work-stealing
// across queues — see spec §4.4.
type Pool struct {
	conn    *queue.Connection
	workers []*worker
	ctl     *control
	wg      sync.WaitGroup
	once    sync.Once
}

// New builds a Pool bound to conn but does not start any goroutines —
// call Start (implicitly done by the lifecycle methods) to spawn workers.
func New(conn *queue.Connection) *Pool {
	cfg := conn.Config()
	n := int(cfg.WorkerCount) + 1 // +1 for the single retry-queue worker

	ctl := newControl(n)
	p := &Pool{conn: conn, ctl: ctl}

	for i := 0; i < int(cfg.WorkerCount); i++ {
		p.workers = append(p.workers, &worker{
			id:      i,
			queue:   queue.Main,
			conn:    conn,
			control: ctl.receiverFor(i),
			state:   newAtomicState(),
		})
	}
	retryIdx := int(cfg.WorkerCount)
	p.workers = append(p.workers, &worker{
		id:      retryIdx,
		queue:   queue.Retry,
		conn:    conn,
		control: ctl.receiverFor(retryIdx),
		state:   newAtomicState(),
	})

	return p
}

// Start spawns every worker's goroutine. Calling it more than once is a
// no-op — a Pool's workers run for its entire lifetime.
func (p *Pool) Start() {
	p.once.Do(func() {
		for _, w := range p.workers {
			w := w
			p.wg.Add(1)
			metrics.ActiveWorkers.WithLabelValues(w.queue.String()).Inc()
			go func() {
				defer p.wg.Done()
				defer metrics.ActiveWorkers.WithLabelValues(w.queue.String()).Dec()
				w.run(p.conn)
			}()
		}
		logger.L.Info("worker pool started", "main_workers", len(p.workers)-1, "retry_workers", 1)
	})
}

// RunUntilIdleAndStop broadcasts Drain, then blocks until every worker has
// exited. Workers finish any job already in flight and any job already
// visible in the queue, then exit on their next dequeue timeout.
func (p *Pool) RunUntilIdleAndStop() {
	p.Start()
	p.ctl.broadcast(Drain)
	p.wg.Wait()
	logger.L.Info("worker pool drained and stopped")
}

// Stop broadcasts StopNow, then blocks until every worker has exited. In
// contrast to RunUntilIdleAndStop, a worker stops after its current job
// (if any) completes, without waiting for the queue to empty.
func (p *Pool) Stop() {
	p.Start()
	p.ctl.broadcast(StopNow)
	p.wg.Wait()
	logger.L.Info("worker pool stopped")
}

// RunForever starts the pool and blocks on every worker's exit. Workers
// only exit in response to a control signal (or, if repeat_on_timeout is
// false, a single dequeue timeout) — callers that want a long-lived
// process should pair this with a signal handler that calls Stop or
// RunUntilIdleAndStop from another goroutine.
func (p *Pool) RunForever() {
	p.Start()
	p.wg.Wait()
}

// States returns the current State of every worker, indexed the same way
// workers were spawned (Main workers first, Retry worker last). Useful for
// tests that want to observe a worker mid-execution.
func (p *Pool) States() []State {
	states := make([]State, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.state.get()
	}
	return states
}
