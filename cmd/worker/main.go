package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mugi0227/nagi-sub000/internal/app"
	"github.com/mugi0227/nagi-sub000/pkg/config"
	"github.com/mugi0227/nagi-sub000/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	logger.Info("starting nagi worker")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Start the outbox relay
	processor := container.OutboxProcessor
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	// Start the periodic driver
	driver := container.Driver
	if err := driver.Start(ctx); err != nil {
		logger.Error("failed to start driver", "error", err)
		os.Exit(1)
	}

	cleanupTicker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				deleted, err := container.OutboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
				if err != nil {
					logger.Error("outbox cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
				}
			}
		}
	}()

	if cfg.WorkerHealthAddr != "" {
		startHealthServer(ctx, cfg.WorkerHealthAddr, container, logger)
	}

	statsTicker := time.NewTicker(cfg.OutboxStatsInterval)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				outboxStats := processor.GetStats()
				driverStats := driver.GetStats()
				logger.Info("worker stats",
					"plans_generated", driverStats.PlansGenerated,
					"nudges_raised", driverStats.NudgesRaised,
					"retrospectives_closed", driverStats.RetrospectivesClosed,
					"user_failures", driverStats.UserFailures,
					"last_tick_at", driverStats.LastTickAt,
					"outbox_published", outboxStats.PublishedCount,
					"outbox_failed", outboxStats.FailedCount,
					"outbox_dead", outboxStats.DeadCount,
					"outbox_lag_seconds", outboxStats.LagSeconds,
				)
			}
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down worker")

	driver.Stop()
	processor.Stop()
	logger.Info("worker stopped")
}

// startHealthServer exposes liveness and readiness probes.
func startHealthServer(ctx context.Context, addr string, container *app.Container, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		driverStats := container.Driver.GetStats()
		outboxStats := container.OutboxProcessor.GetStats()
		response := map[string]any{
			"status":                "ok",
			"driver_running":        driverStats.IsRunning,
			"plans_generated":       driverStats.PlansGenerated,
			"nudges_raised":         driverStats.NudgesRaised,
			"retrospectives_closed": driverStats.RetrospectivesClosed,
			"last_tick_at":          driverStats.LastTickAt,
			"outbox_running":        outboxStats.IsRunning,
			"outbox_published":      outboxStats.PublishedCount,
			"outbox_failed":         outboxStats.FailedCount,
			"outbox_dead":           outboxStats.DeadCount,
			"last_error":            driverStats.LastError,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := container.DBConn.Ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	healthSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
