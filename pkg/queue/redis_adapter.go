package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/foreman/pkg/cache"
)

// redisAdapter is a single logical queue backed by a Redis list, using
// RPUSH/BLPOP so that multiple processes can share one durable queue.
// Ordering is FIFO: RPUSH appends, BLPOP pops from the head.
type redisAdapter struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func (a *redisAdapter) Push(env JobEnvelope) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.client.RPush(ctx, a.key, raw).Err(); err != nil {
		return newBackendErr("push", ErrBackendWrite, err)
	}
	return nil
}

// Pop blocks on BLPOP for up to the backend's configured dequeue timeout.
// ctx's deadline, if nearer than the timeout, wins.
func (a *redisAdapter) Pop(ctx context.Context) (JobEnvelope, error) {
	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}

	res, err := a.client.BLPop(ctx, timeout, a.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return JobEnvelope{}, noJobTimeout()
		}
		return JobEnvelope{}, noJobBackendError(newBackendErr("pop", ErrBackendRead, err))
	}

	// BLPOP returns [key, value].
	if len(res) != 2 {
		return JobEnvelope{}, noJobBackendError(fmt.Errorf("queue: unexpected BLPOP reply shape"))
	}

	env, err := decodeEnvelope([]byte(res[1]))
	if err != nil {
		return JobEnvelope{}, noJobBackendError(err)
	}
	return env, nil
}

func (a *redisAdapter) Size() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := a.client.LLen(ctx, a.key).Result()
	if err != nil {
		return 0, newBackendErr("size", ErrBackendRead, err)
	}
	return int(n), nil
}

func (a *redisAdapter) DeleteAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.client.Del(ctx, a.key).Err(); err != nil {
		return newBackendErr("delete_all", ErrBackendWrite, err)
	}
	return nil
}

// RedisBackend is the durable Backend implementation. Keys are namespaced
// as "{namespace}_main" / "{namespace}_retry" / "{namespace}_dead" so that
// several applications can share one Redis instance without collisions.
type RedisBackend struct {
	// Addr/Password are accepted for callers constructing a RedisBackend
	// directly, but Init reuses the process-wide client from pkg/cache
	// (which is itself built from these same config.RedisAddr/
	// RedisPassword values) rather than opening a second pool — see
	// cache.Client.
	Addr      string
	Password  string
	DB        int
	Namespace string
	// Timeout bounds each blocking Pop call. Zero defaults to 5s.
	Timeout time.Duration
	// WithGormMirror optionally layers a SQL dead-letter mirror on top of
	// the Redis dead-letter list.
	WithGormMirror DeadLetterSink
}

func (b *RedisBackend) Init() (Adapter, Adapter, DeadLetterSink, error) {
	if b.Namespace == "" {
		return nil, nil, nil, fmt.Errorf("%w: redis backend requires a namespace", ErrBackendInit)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := cache.Client()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrBackendInit, err)
	}

	main := &redisAdapter{client: client, key: b.Namespace + "_main", timeout: timeout}
	retry := &redisAdapter{client: client, key: b.Namespace + "_retry", timeout: timeout}

	dead := DeadLetterSink(&redisDeadLetterList{client: client, key: b.Namespace + "_dead"})
	if b.WithGormMirror != nil {
		dead = &redisPlusMirrorSink{redisSink: dead, mirror: b.WithGormMirror}
	}

	return main, retry, dead, nil
}

// redisDeadLetterList stores dead-lettered envelopes in a Redis list so they
// survive the process restarting, mirroring the main/retry queues' approach.
type redisDeadLetterList struct {
	client *redis.Client
	key    string
}

func (s *redisDeadLetterList) Push(env JobEnvelope, _ string) error {
	raw, err := env.encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.RPush(ctx, s.key, raw).Err(); err != nil {
		return newBackendErr("dead_letter_push", ErrBackendWrite, err)
	}
	return nil
}

func (s *redisDeadLetterList) Size() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, newBackendErr("dead_letter_size", ErrBackendRead, err)
	}
	return int(n), nil
}

func (s *redisDeadLetterList) List() ([]JobEnvelope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raws, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, newBackendErr("dead_letter_list", ErrBackendRead, err)
	}
	out := make([]JobEnvelope, 0, len(raws))
	for _, raw := range raws {
		env, err := decodeEnvelope([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (s *redisDeadLetterList) DeleteAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return newBackendErr("dead_letter_delete_all", ErrBackendWrite, err)
	}
	return nil
}

// redisPlusMirrorSink fans dead-letter writes out to the Redis list and an
// optional SQL mirror, reading back from Redis (the durable source of truth
// when this backend is in play).
type redisPlusMirrorSink struct {
	redisSink DeadLetterSink
	mirror    DeadLetterSink
}

func (s *redisPlusMirrorSink) Push(env JobEnvelope, reason string) error {
	if err := s.redisSink.Push(env, reason); err != nil {
		return err
	}
	_ = s.mirror.Push(env, reason)
	return nil
}

func (s *redisPlusMirrorSink) Size() (int, error)          { return s.redisSink.Size() }
func (s *redisPlusMirrorSink) List() ([]JobEnvelope, error) { return s.redisSink.List() }
func (s *redisPlusMirrorSink) DeleteAll() error {
	_ = s.mirror.DeleteAll()
	return s.redisSink.DeleteAll()
}
