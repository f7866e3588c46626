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

	"github.com/kirillkom/meeting-notes/internal/bootstrap"
	"github.com/kirillkom/meeting-notes/internal/config"
	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/observability/logging"
	"github.com/kirillkom/meeting-notes/internal/observability/metrics"
)

const serviceName = "meeting-worker"

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

	if app.ExportQueue == nil {
		slog.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := time.Duration(cfg.WorkerExportTimeoutSeconds) * time.Second
	slog.Info("worker_subscribed", "subject", cfg.NATSExportSubject)
	err = app.ExportQueue.SubscribeExportRequested(ctx, func(handlerCtx context.Context, job domain.ExportJob) error {
		if !job.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.RequestedAt))
		}
		workerMetrics.StartJob()
		start := time.Now()

		exportCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()
		record, err := app.Meetings.ExportToDocument(exportCtx, job.MeetingID)

		outcome := metrics.JobOutcome{}
		if err == nil {
			outcome = metrics.JobOutcome{Provider: record.Provider, Status: string(record.Status), Retries: record.Retries}
		}
		workerMetrics.FinishJob(serviceName, time.Since(start), outcome)
		if err != nil {
			return err
		}
		slog.Info("export_job_done", "meeting_id", job.MeetingID, "status", record.Status, "retries", record.Retries)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
