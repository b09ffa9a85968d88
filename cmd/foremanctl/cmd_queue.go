package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/foreman/pkg/queue"
)

// foremanctl size
var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the current length of main, retry, and dead-letter",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := establish()
		if err != nil {
			return err
		}

		main, err := conn.Size(queue.Main)
		if err != nil {
			return fmt.Errorf("foremanctl: size main: %w", err)
		}
		retry, err := conn.Size(queue.Retry)
		if err != nil {
			return fmt.Errorf("foremanctl: size retry: %w", err)
		}
		dead, err := conn.DeadLetterSize()
		if err != nil {
			return fmt.Errorf("foremanctl: size dead-letter: %w", err)
		}

		fmt.Printf("main:  %d\nretry: %d\ndead:  %d\n", main, retry, dead)
		return nil
	},
}

var purgeConfirmFlag bool

// foremanctl purge
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every envelope in main, retry, and dead-letter",
	Long: "Empties all three queue identifiers at once. Unlike requeue-dead, " +
		"this does not preserve anything — every envelope, including " +
		"dead-lettered ones, is gone. Requires --yes to run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeConfirmFlag {
			return fmt.Errorf("foremanctl: purge is destructive, re-run with --yes to confirm")
		}

		conn, err := establish()
		if err != nil {
			return err
		}

		if err := conn.DeleteAll(); err != nil {
			return fmt.Errorf("foremanctl: purge: %w", err)
		}

		fmt.Println("main, retry, and dead-letter are now empty")
		return nil
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeConfirmFlag, "yes", false, "Confirm the purge")
}

// foremanctl requeue-dead
var requeueDeadCmd = &cobra.Command{
	Use:   "requeue-dead",
	Short: "Requeue every dead-lettered envelope back onto Main, then clear the sink",
	Long: "Moves every envelope currently in the dead-letter sink onto Main with " +
		"its AttemptCount reset to Fresh, then clears the sink. This is a manual " +
		"operator decision — the core itself never reads envelopes back out of " +
		"dead-letter automatically.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := establish()
		if err != nil {
			return err
		}

		envs, err := conn.DeadLetterEnvelopes()
		if err != nil {
			return fmt.Errorf("foremanctl: list dead-letter: %w", err)
		}
		if len(envs) == 0 {
			fmt.Println("dead-letter sink is empty, nothing to requeue")
			return nil
		}

		for _, env := range envs {
			if err := conn.EnqueueTo(queue.Main, env.Name, env.Args, queue.Fresh()); err != nil {
				return fmt.Errorf("foremanctl: requeue %q: %w", env.Name, err)
			}
		}

		if err := conn.ClearDeadLetter(); err != nil {
			return fmt.Errorf("foremanctl: clear dead-letter: %w", err)
		}

		fmt.Printf("requeued %d envelope(s) onto main\n", len(envs))
		return nil
	},
}
