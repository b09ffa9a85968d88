package worker_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foreman/pkg/queue"
	"github.com/shashiranjanraj/foreman/pkg/worker"
)

type echoArgs struct {
	Val string
}

func establish(t *testing.T, cfg queue.Config, registry *queue.Registry) *queue.Connection {
	t.Helper()
	conn, err := queue.Establish(cfg, &queue.MemoryBackend{}, registry)
	require.NoError(t, err)
	return conn
}

// S1 — happy path: 5 jobs, 2 main workers, all succeed, every queue ends empty.
func TestPool_HappyPath(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	registry := queue.NewRegistry()
	require.NoError(t, registry.RegisterFunc("echo", func(conn *queue.Connection, args queue.Args) error {
		var a echoArgs
		if err := args.Deserialize(&a); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, a.Val)
		mu.Unlock()
		return nil
	}))

	conn := establish(t, queue.Config{
		RetryLimit: 3, WorkerCount: 2, DequeueTimeout: 50 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		args, err := queue.SerializeArgs(echoArgs{Val: v})
		require.NoError(t, err)
		require.NoError(t, conn.EnqueueTo(queue.Main, "echo", args, queue.Fresh()))
	}

	pool := worker.New(conn)
	pool.RunUntilIdleAndStop()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, seen)

	mainSize, err := conn.Size(queue.Main)
	require.NoError(t, err)
	retrySize, err := conn.Size(queue.Retry)
	require.NoError(t, err)
	deadSize, err := conn.DeadLetterSize()
	require.NoError(t, err)
	require.Zero(t, mainSize)
	require.Zero(t, retrySize)
	require.Zero(t, deadSize)
}

// S2 — retry then success: fails on attempts 1, 2, succeeds on 3.
func TestPool_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32

	registry := queue.NewRegistry()
	require.NoError(t, registry.RegisterFunc("flaky", func(conn *queue.Connection, args queue.Args) error {
		n := calls.Add(1)
		if n < 3 {
			return errors.New("not yet")
		}
		return nil
	}))

	conn := establish(t, queue.Config{
		RetryLimit: 3, WorkerCount: 1, DequeueTimeout: 30 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	args, err := queue.SerializeArgs(echoArgs{Val: "x"})
	require.NoError(t, err)
	require.NoError(t, conn.EnqueueTo(queue.Main, "flaky", args, queue.Fresh()))

	pool := worker.New(conn)
	pool.RunUntilIdleAndStop()

	require.EqualValues(t, 3, calls.Load())

	deadSize, err := conn.DeadLetterSize()
	require.NoError(t, err)
	require.Zero(t, deadSize)
}

// S3 — retry ceiling: handler always fails, retry_limit=2 dead-letters at
// the 3rd attempt (Fresh -> 1 -> 2 -> 3, dead-lettered since 3 > 2).
func TestPool_RetryCeiling(t *testing.T) {
	var calls atomic.Int32

	registry := queue.NewRegistry()
	require.NoError(t, registry.RegisterFunc("doomed", func(conn *queue.Connection, args queue.Args) error {
		calls.Add(1)
		return errors.New("always fails")
	}))

	conn := establish(t, queue.Config{
		RetryLimit: 2, WorkerCount: 1, DequeueTimeout: 30 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	args, err := queue.SerializeArgs(echoArgs{Val: "x"})
	require.NoError(t, err)
	require.NoError(t, conn.EnqueueTo(queue.Main, "doomed", args, queue.Fresh()))

	pool := worker.New(conn)
	pool.RunUntilIdleAndStop()

	require.EqualValues(t, 3, calls.Load())

	deadSize, err := conn.DeadLetterSize()
	require.NoError(t, err)
	require.Equal(t, 1, deadSize)
}

// S4 — unknown job: enqueued name has no registered handler. The worker
// must not crash; the envelope lands in dead-letter.
func TestPool_UnknownJob(t *testing.T) {
	registry := queue.NewRegistry() // nothing registered

	conn := establish(t, queue.Config{
		RetryLimit: 3, WorkerCount: 1, DequeueTimeout: 30 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	args, err := queue.SerializeArgs(echoArgs{Val: "x"})
	require.NoError(t, err)
	require.NoError(t, conn.EnqueueTo(queue.Main, "missing", args, queue.Fresh()))

	pool := worker.New(conn)
	pool.RunUntilIdleAndStop()

	mainSize, err := conn.Size(queue.Main)
	require.NoError(t, err)
	require.Zero(t, mainSize)

	deadSize, err := conn.DeadLetterSize()
	require.NoError(t, err)
	require.Equal(t, 1, deadSize)
}

// S5 — concurrent producers & consumers: 8 main workers, two producer
// goroutines each enqueueing 1000 envelopes concurrently with the pool
// running. Expect exactly 2000 distinct handler invocations, no duplicates,
// and every queue (main/retry/dead) empty once drained.
func TestPool_ConcurrentProducersConsumers(t *testing.T) {
	const producers = 2
	const perProducer = 1000
	const total = producers * perProducer

	var mu sync.Mutex
	seen := make(map[string]int, total)

	registry := queue.NewRegistry()
	require.NoError(t, registry.RegisterFunc("echo", func(conn *queue.Connection, args queue.Args) error {
		var a echoArgs
		if err := args.Deserialize(&a); err != nil {
			return err
		}
		mu.Lock()
		seen[a.Val]++
		mu.Unlock()
		return nil
	}))

	conn := establish(t, queue.Config{
		RetryLimit: 3, WorkerCount: 8, DequeueTimeout: 50 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	pool := worker.New(conn)
	pool.Start()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				val := fmt.Sprintf("p%d-%d", producerID, i)
				args, err := queue.SerializeArgs(echoArgs{Val: val})
				require.NoError(t, err)
				require.NoError(t, conn.EnqueueTo(queue.Main, "echo", args, queue.Fresh()))
			}
		}(p)
	}
	wg.Wait()

	pool.RunUntilIdleAndStop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, total, "expected %d distinct envelopes to have been handled", total)
	for val, count := range seen {
		require.Equal(t, 1, count, "envelope %q must be handled exactly once, got %d", val, count)
	}

	mainSize, err := conn.Size(queue.Main)
	require.NoError(t, err)
	retrySize, err := conn.Size(queue.Retry)
	require.NoError(t, err)
	deadSize, err := conn.DeadLetterSize()
	require.NoError(t, err)
	require.Zero(t, mainSize)
	require.Zero(t, retrySize)
	require.Zero(t, deadSize)
}

// S6 — StopNow lets an in-flight handler finish, then the worker exits
// without picking up a second job that was already enqueued.
func TestPool_StopNow_LetsInFlightJobFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var secondJobRan atomic.Bool

	registry := queue.NewRegistry()
	require.NoError(t, registry.RegisterFunc("slow", func(conn *queue.Connection, args queue.Args) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, registry.RegisterFunc("second", func(conn *queue.Connection, args queue.Args) error {
		secondJobRan.Store(true)
		return nil
	}))

	conn := establish(t, queue.Config{
		RetryLimit: 3, WorkerCount: 1, DequeueTimeout: 20 * time.Millisecond, RepeatOnTimeout: true,
	}, registry)

	args, err := queue.SerializeArgs(echoArgs{})
	require.NoError(t, err)
	require.NoError(t, conn.EnqueueTo(queue.Main, "slow", args, queue.Fresh()))
	require.NoError(t, conn.EnqueueTo(queue.Main, "second", args, queue.Fresh()))

	pool := worker.New(conn)
	pool.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	// Give Stop a moment to broadcast before releasing the in-flight job,
	// to exercise the "signal observed mid-execution" path rather than
	// racing it.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}

	require.False(t, secondJobRan.Load(), "StopNow must not start a new job after the in-flight one completes")
}
