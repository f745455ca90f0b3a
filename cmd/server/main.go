package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-unit/internal/content"
	"github.com/p-n-ai/pai-unit/internal/engine"
	"github.com/p-n-ai/pai-unit/internal/notify"
	"github.com/p-n-ai/pai-unit/internal/platform/cache"
	"github.com/p-n-ai/pai-unit/internal/platform/config"
	"github.com/p-n-ai/pai-unit/internal/platform/database"
	"github.com/p-n-ai/pai-unit/internal/platform/logging"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
	"github.com/p-n-ai/pai-unit/internal/transport"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	loader, err := content.NewLoader(cfg.Content.Path)
	if err != nil {
		slog.Error("failed to load units", "path", cfg.Content.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("units loaded", "path", cfg.Content.Path, "count", len(loader.UnitIDs()))

	var sinks notify.MultiSink
	var checks []readinessCheck

	if cfg.Notify.Postgres {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, notify.NewPostgresSink(db.Pool))
		checks = append(checks, readinessCheck{name: "database", check: db.HealthCheck})
		slog.Info("postgres notifications enabled")
	}

	if cfg.Notify.Redis {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		sinks = append(sinks, notify.NewRedisSink(c, cfg.Notify.Channel))
		checks = append(checks, readinessCheck{name: "cache", check: c.HealthCheck})
		slog.Info("redis notifications enabled", "channel", cfg.Notify.Channel)
	}

	var sink notify.Sink = notify.NopSink{}
	if len(sinks) > 0 {
		sink = sinks
	}

	api := transport.NewServer(loader, transport.Options{
		Engine: engine.Config{
			ScoreMode:      questionnaire.ScoreMode(cfg.Engine.ScoreMode),
			CountAbandoned: cfg.Engine.CountAbandoned,
			Sink:           sink,
		},
		TickInterval:   time.Duration(cfg.Engine.TickInterval) * time.Second,
		OriginPatterns: cfg.Server.AllowedOrigins,
	})

	mux := newMux(checks...)
	api.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// readinessCheck is a dependency that must answer before the server is ready.
type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// newMux creates the HTTP router with health check endpoints.
func newMux(checks ...readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", c.name, "error", err)
				failed[c.name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
