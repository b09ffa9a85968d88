package queue

import (
	"context"
	"sync"
)

// memoryAdapter is a single logical queue backed by a mutex-guarded slice
// and a buffered signal channel, used both by MemoryBackend (for local
// development and tests) and as the fallback when config.QueueBackend()
// is anything other than "redis".
type memoryAdapter struct {
	mu      sync.Mutex
	items   [][]byte
	notify  chan struct{}
}

func newMemoryAdapter() *memoryAdapter {
	return &memoryAdapter{notify: make(chan struct{}, 1)}
}

func (a *memoryAdapter) Push(env JobEnvelope) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.items = append(a.items, raw)
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return nil
}

func (a *memoryAdapter) tryPop() (JobEnvelope, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.items) == 0 {
		return JobEnvelope{}, false, nil
	}
	raw := a.items[0]
	a.items = a.items[1:]

	env, err := decodeEnvelope(raw)
	if err != nil {
		return JobEnvelope{}, false, err
	}
	return env, true, nil
}

// Pop blocks until an envelope is available or ctx is done. ctx carries the
// caller's configured dequeue timeout — see Connection.DequeueFrom.
func (a *memoryAdapter) Pop(ctx context.Context) (JobEnvelope, error) {
	for {
		if env, ok, err := a.tryPop(); err != nil {
			return JobEnvelope{}, newBackendErr("pop", ErrBackendRead, err)
		} else if ok {
			return env, nil
		}

		select {
		case <-a.notify:
			continue
		case <-ctx.Done():
			return JobEnvelope{}, noJobTimeout()
		}
	}
}

func (a *memoryAdapter) Size() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items), nil
}

func (a *memoryAdapter) DeleteAll() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	return nil
}

// MemoryBackend is the in-process Backend implementation: three independent
// memoryAdapter-backed handles with no persistence across process restarts.
// It is the default when config.QueueBackend() is not "redis", and is what
// every unit test in this module builds its Connection on.
type MemoryBackend struct {
	// WithGormMirror optionally layers a durable dead-letter mirror on top
	// of the always-present in-memory dead-letter sink.
	WithGormMirror DeadLetterSink
}

func (b *MemoryBackend) Init() (Adapter, Adapter, DeadLetterSink, error) {
	main := newMemoryAdapter()
	retry := newMemoryAdapter()

	dead := DeadLetterSink(newMemoryDeadLetterSink())
	if b.WithGormMirror != nil {
		dead = &multiDeadLetterSink{memory: dead.(*memoryDeadLetterSink), mirror: b.WithGormMirror}
	}

	return main, retry, dead, nil
}
