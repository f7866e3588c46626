package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
)

const exportWorkersGroup = "export-workers"

// ExportQueue carries asynchronous export requests to the worker.
type ExportQueue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func NewExportQueue(conn *nats.Conn, subject string, executor *resilience.Executor) *ExportQueue {
	return &ExportQueue{conn: conn, subject: subject, executor: executor}
}

func (q *ExportQueue) PublishExportRequested(ctx context.Context, job domain.ExportJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal export job: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeExportRequested blocks until ctx is done, then drains the subscription.
func (q *ExportQueue) SubscribeExportRequested(ctx context.Context, handler func(context.Context, domain.ExportJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, exportWorkersGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var job domain.ExportJob
		if err := json.Unmarshal(msg.Data, &job); err != nil || job.MeetingID == "" {
			slog.Warn("export_job_malformed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, job); err != nil {
			slog.Error("export_job_failed", "meeting_id", job.MeetingID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
