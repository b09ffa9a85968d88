package migrations

import (
	"github.com/shashiranjanraj/foreman/pkg/migration"
	"github.com/shashiranjanraj/foreman/pkg/queue"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260101000000_create_dead_letter_jobs_table", &CreateDeadLetterJobsTable{})
}

// -------- 0001: dead_letter_jobs --------

// CreateDeadLetterJobsTable creates the table backing the durable
// dead-letter mirror (see pkg/queue/deadletter.go). The in-memory sink is
// always present and requires no migration; this table is only consulted
// when a GORM connection has been wired via queue.NewGormDeadLetterSink.
type CreateDeadLetterJobsTable struct{}

func (m *CreateDeadLetterJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.DeadLetterRecord{})
}

func (m *CreateDeadLetterJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("dead_letter_jobs")
}
