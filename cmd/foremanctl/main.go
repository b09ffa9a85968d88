// Command foremanctl is the operator CLI for a Foreman deployment: it
// inspects queue depth, requeues dead-lettered envelopes, runs the
// dead-letter mirror's migrations, and serves the Prometheus/health admin
// surface. It never runs job handlers itself — handler registration is the
// embedding application's job (see pkg/queue.Registry); foremanctl only
// ever talks to the public Connection API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Blank-imported so every migration's init() registers itself before
	// the migrate subcommands run.
	_ "github.com/shashiranjanraj/foreman/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foremanctl",
	Short: "Operator CLI for a Foreman job-queue deployment",
	Long: "foremanctl inspects and administers a running Foreman deployment: " +
		"queue depth, dead-letter requeue, the dead-letter mirror's migrations, " +
		"and the Prometheus/health admin surface.",
}

func init() {
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(requeueDeadCmd)
	rootCmd.AddCommand(purgeCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)

	rootCmd.AddCommand(serveCmd)
}
