// Package database bootstraps the optional GORM connection backing the
// durable dead-letter mirror (see pkg/queue/deadletter.go). It has no
// involvement in the hot dequeue/execute path — jobs never touch SQL.
package database

import (
	"fmt"

	"github.com/shashiranjanraj/foreman/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect opens the dialector selected by config.DatabaseDriver/DatabaseDSN.
// Returns an error instead of exiting so callers (e.g. cmd/foremanctl) can
// decide whether a missing dead-letter store is fatal.
func Connect() error {
	driver := config.DatabaseDriver()
	dsn := config.DatabaseDSN()

	dialector, err := buildDialector(driver, dsn)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("database: open %s: %w", driver, err)
	}

	DB = db
	return nil
}

func buildDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlserver":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres, mysql, sqlserver)", driver)
	}
}
