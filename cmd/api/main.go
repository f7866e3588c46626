package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/meeting-notes/internal/adapters/http"
	"github.com/kirillkom/meeting-notes/internal/bootstrap"
	"github.com/kirillkom/meeting-notes/internal/config"
	"github.com/kirillkom/meeting-notes/internal/observability/logging"
	"github.com/kirillkom/meeting-notes/internal/observability/metrics"
)

const serviceName = "meeting-api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.New(serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.StartLiveRelay(ctx); err != nil {
		slog.Error("live_relay_start_failed", "error", err)
		os.Exit(1)
	}
	if app.SpeakerStore != nil {
		go sweepSpeakerMemory(ctx, app, time.Duration(cfg.SpeakerMemoryIdleMinutes)*time.Minute)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Participants: app.Participants,
		Meetings:     app.Meetings,
		Bus:          app.Bus,
		Catalog:      app.Catalog,
		ExportQueue:  app.ExportQueue,
		STTHealth:    app.STTHealth,
		Metrics:      metrics.NewHTTPServerMetrics(serviceName),
	}).Handler()

	// No WriteTimeout: live streams stay open for the whole meeting.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_failed", "error", err)
	}
}

func sweepSpeakerMemory(ctx context.Context, app *bootstrap.App, idle time.Duration) {
	if idle <= 0 {
		return
	}
	interval := idle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := app.SpeakerStore.Sweep(idle); removed > 0 {
				slog.Info("speaker_memory_swept", "meetings", removed)
			}
		}
	}
}
