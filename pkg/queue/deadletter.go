package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/foreman/pkg/metrics"
)

// DeadLetterSink is the terminal destination for envelopes that exceeded
// the retry ceiling or referenced an unknown job name. It is append-only
// and safe for concurrent use; reads are not required from the core dequeue
// path, only from operator tooling and tests.
type DeadLetterSink interface {
	Push(env JobEnvelope, reason string) error
	Size() (int, error)
	List() ([]JobEnvelope, error)
	DeleteAll() error
}

// memoryDeadLetterSink is the dead-letter sink of MemoryBackend — it is
// what S1–S6's test scenarios read from. A durable mirror (gormDeadLetterSink)
// can additionally be layered on top via multiDeadLetterSink. RedisBackend
// uses a Redis list (redisDeadLetterList) instead.
type memoryDeadLetterSink struct {
	mu   sync.Mutex
	envs []JobEnvelope
}

func newMemoryDeadLetterSink() *memoryDeadLetterSink {
	return &memoryDeadLetterSink{}
}

func (s *memoryDeadLetterSink) Push(env JobEnvelope, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, env)
	return nil
}

func (s *memoryDeadLetterSink) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs), nil
}

func (s *memoryDeadLetterSink) List() ([]JobEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobEnvelope, len(s.envs))
	copy(out, s.envs)
	return out, nil
}

func (s *memoryDeadLetterSink) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = nil
	return nil
}

// DeadLetterRecord is the GORM model persisted by gormDeadLetterSink.
// Auto-migrated via pkg/migration (see database/migrations/initial.go).
type DeadLetterRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	JobName   string    `gorm:"size:255;not null;index"`
	Args      string    `gorm:"type:text;not null"`
	Attempts  string    `gorm:"size:64;not null"`
	Reason    string    `gorm:"type:text"`
	DeadAt    time.Time `gorm:"autoCreateTime"`
	TraceID   string    `gorm:"size:64;index"`
}

func (DeadLetterRecord) TableName() string { return "dead_letter_jobs" }

// gormDeadLetterSink mirrors dead-lettered envelopes into a SQL table via
// GORM, the same pattern the donor framework uses for its failed_jobs
// table. It never replaces the in-memory sink — see multiDeadLetterSink.
type gormDeadLetterSink struct {
	db *gorm.DB
}

// NewGormDeadLetterSink wraps db as a durable dead-letter mirror. Call
// AutoMigrate (or run database/migrations' CreateDeadLetterJobsTable via
// foremanctl migrate) before use.
func NewGormDeadLetterSink(db *gorm.DB) DeadLetterSink {
	return &gormDeadLetterSink{db: db}
}

func (s *gormDeadLetterSink) Push(env JobEnvelope, reason string) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", start)

	record := DeadLetterRecord{
		JobName:  string(env.Name),
		Args:     env.Args.Raw(),
		Attempts: env.Attempts.String(),
		Reason:   reason,
		TraceID:  env.TraceID,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("queue: persist dead letter: %w", err)
	}
	return nil
}

func (s *gormDeadLetterSink) Size() (int, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("count", start)

	var count int64
	if err := s.db.Model(&DeadLetterRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("queue: count dead letters: %w", err)
	}
	return int(count), nil
}

func (s *gormDeadLetterSink) List() ([]JobEnvelope, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", start)

	var records []DeadLetterRecord
	if err := s.db.Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("queue: list dead letters: %w", err)
	}

	out := make([]JobEnvelope, 0, len(records))
	for _, r := range records {
		var args Args
		if err := json.Unmarshal([]byte(r.Args), &args); err != nil {
			args = Args{}
		}
		out = append(out, JobEnvelope{Name: JobName(r.JobName), Args: args, TraceID: r.TraceID})
	}
	return out, nil
}

func (s *gormDeadLetterSink) DeleteAll() error {
	start := time.Now()
	defer metrics.ObserveDBQuery("delete", start)

	if err := s.db.Exec("DELETE FROM dead_letter_jobs").Error; err != nil {
		return fmt.Errorf("queue: clear dead letters: %w", err)
	}
	return nil
}

// multiDeadLetterSink fans writes out to the always-present memory sink and
// an optional durable mirror, but reads (Size/List) come from memory, which
// is what the testable properties in spec §8 are defined against.
type multiDeadLetterSink struct {
	memory *memoryDeadLetterSink
	mirror DeadLetterSink
}

func (s *multiDeadLetterSink) Push(env JobEnvelope, reason string) error {
	if err := s.memory.Push(env, reason); err != nil {
		return err
	}
	if s.mirror != nil {
		// The durable mirror is best-effort: a failure here must not lose
		// the envelope, since the in-memory sink already has it.
		_ = s.mirror.Push(env, reason)
	}
	return nil
}

func (s *multiDeadLetterSink) Size() (int, error)            { return s.memory.Size() }
func (s *multiDeadLetterSink) List() ([]JobEnvelope, error)   { return s.memory.List() }
func (s *multiDeadLetterSink) DeleteAll() error {
	if s.mirror != nil {
		_ = s.mirror.DeleteAll()
	}
	return s.memory.DeleteAll()
}
