package main

import (
	"fmt"

	"github.com/shashiranjanraj/foreman/config"
	"github.com/shashiranjanraj/foreman/pkg/database"
	"github.com/shashiranjanraj/foreman/pkg/queue"
)

// establish builds a Connection against whatever backend config.QueueBackend
// selects, with an empty Registry — every foremanctl subcommand only ever
// calls EnqueueTo/Size/DeleteAll/ClearDeadLetter/DeadLetter*, none of which
// resolve a job name, so no handler registration is needed here. If the
// dead-letter SQL mirror is configured and reachable it is layered on top of
// the backend's own dead-letter sink (in-memory, or the Redis list);
// otherwise foremanctl uses the backend's sink only and says so.
func establish() (*queue.Connection, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("foremanctl: load config: %w", err)
	}

	var mirror queue.DeadLetterSink
	if err := database.Connect(); err != nil {
		fmt.Printf("foremanctl: dead-letter SQL mirror unavailable (%v); using the backend's dead-letter sink only\n", err)
	} else {
		mirror = queue.NewGormDeadLetterSink(database.DB)
	}

	backend := queue.BackendFromConfig(mirror)
	cfg := queue.ConfigFromEnv()
	registry := queue.NewRegistry()

	conn, err := queue.Establish(cfg, backend, registry)
	if err != nil {
		return nil, fmt.Errorf("foremanctl: establish connection: %w", err)
	}
	return conn, nil
}
