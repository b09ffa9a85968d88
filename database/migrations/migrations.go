// Package migrations contains all database migrations for the optional
// dead-letter mirror. Each file uses init() to call migration.Register().
// Blank-imported by cmd/foremanctl so `foremanctl migrate` sees every
// registered migration.
package migrations
