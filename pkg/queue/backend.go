package queue

import (
	"time"

	"github.com/shashiranjanraj/foreman/config"
)

// BackendFromConfig selects MemoryBackend or RedisBackend per
// config.QueueBackend(), wiring in the rest of the backend-specific
// settings config already knows how to read. mirror, if non-nil, is
// layered on top of the always-present in-memory dead-letter sink (or, for
// Redis, the durable Redis dead-letter list) as an additional durable copy.
func BackendFromConfig(mirror DeadLetterSink) Backend {
	switch config.QueueBackend() {
	case "redis":
		return &RedisBackend{
			Addr:           config.RedisAddr(),
			Password:       config.RedisPassword(),
			Namespace:      config.QueueNamespace(),
			Timeout:        config.DequeueTimeout() + time.Second,
			WithGormMirror: mirror,
		}
	default:
		return &MemoryBackend{WithGormMirror: mirror}
	}
}

// ConfigFromEnv builds a Config from process configuration, the same way
// config.Load() backs every other ambient setting in this module.
func ConfigFromEnv() Config {
	return Config{
		RetryLimit:      config.RetryLimit(),
		WorkerCount:     config.WorkerCount(),
		DequeueTimeout:  config.DequeueTimeout(),
		RepeatOnTimeout: config.RepeatOnTimeout(),
	}
}
