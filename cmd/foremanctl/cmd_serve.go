package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/foreman/config"
	"github.com/shashiranjanraj/foreman/pkg/logger"
	"github.com/shashiranjanraj/foreman/pkg/metrics"
	"github.com/shashiranjanraj/foreman/pkg/queue"
)

// foremanctl serve — the admin-only HTTP surface: /metrics for Prometheus,
// /healthz for liveness probes, /dead-letter to list what's currently
// dead-lettered. It mounts no job-dispatch routes; starting workers that
// run handlers is the embedding application's responsibility, not this
// CLI's (spec.md explicitly places the application's main() out of scope).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin HTTP surface (/metrics, /healthz, /dead-letter)",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := establish()
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(metrics.Middleware())
		r.Get("/healthz", healthzHandler)
		r.Get("/metrics", metrics.Handler())
		r.Get("/dead-letter", deadLetterHandler(conn))

		addr := config.AdminAddr()
		srv := &http.Server{Addr: addr, Handler: r}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			logger.L.Info("foremanctl admin surface listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.L.Error("admin surface stopped", "error", err)
			}
		}()

		<-ctx.Done()
		fmt.Println("\nshutting down admin surface...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type deadLetterEntry struct {
	Name     string     `json:"name"`
	Args     queue.Args `json:"args"`
	Attempts string     `json:"attempts"`
	TraceID  string     `json:"trace_id,omitempty"`
}

func deadLetterHandler(conn *queue.Connection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		envs, err := conn.DeadLetterEnvelopes()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		out := make([]deadLetterEntry, 0, len(envs))
		for _, env := range envs {
			out = append(out, deadLetterEntry{
				Name:     string(env.Name),
				Args:     env.Args,
				Attempts: env.Attempts.String(),
				TraceID:  env.TraceID,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
