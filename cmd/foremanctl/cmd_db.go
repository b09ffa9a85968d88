package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/foreman/pkg/database"
	"github.com/shashiranjanraj/foreman/pkg/migration"
)

func openMigrationRunner() (*migration.Runner, error) {
	if err := database.Connect(); err != nil {
		return nil, fmt.Errorf("foremanctl: connect database: %w", err)
	}
	return migration.New(database.DB), nil
}

// foremanctl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending dead-letter-mirror migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := openMigrationRunner()
		if err != nil {
			return err
		}
		return runner.Run()
	},
}

// foremanctl migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of dead-letter-mirror migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := openMigrationRunner()
		if err != nil {
			return err
		}
		return runner.Rollback()
	},
}

// foremanctl migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show which dead-letter-mirror migrations have run",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := openMigrationRunner()
		if err != nil {
			return err
		}
		return runner.Status()
	},
}
