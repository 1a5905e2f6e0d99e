// Package fanout consumes queue.TopicFanout tasks, loads the alert and
// its project's enabled webhook subscriptions, and idempotently creates
// (or reuses) one webhook_deliveries row per subscription before
// enqueueing a queue.TopicDeliver task for each.
//
// Grounded on the teacher's fan-out logic in internal/ingest/service.go
// (PublishEvent's subscriber query + per-target delivery batch) and the
// original's pg_insert(...).on_conflict_do_update idempotent-insert
// pattern in app/db/repositories/webhook_delivery_repo.py.
package fanout

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/store"
	"github.com/ridgeline-io/ridgeline/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

func decodeJSON(body []byte, v any) error { return json.Unmarshal(body, v) }

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// Repository is the subset of *store.Store the fan-out worker depends on.
type Repository interface {
	GetAlert(ctx context.Context, id int64) (store.Alert, error)
	ListWebhooks(ctx context.Context, projectID int64, enabledOnly bool) ([]store.WebhookSubscription, error)
	EnsureDeliveryRow(ctx context.Context, projectID, alertID, webhookID int64) (store.WebhookDelivery, error)
}

// Publisher is the subset of *queue.Publisher the worker depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, task any) error
}

type Worker struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger
}

func NewWorker(repo Repository, publisher Publisher, logger *logging.Logger) *Worker {
	return &Worker{repo: repo, publisher: publisher, logger: logger}
}

// HandleMessage implements nsq.Handler, consuming a queue.FanoutTask per
// message.
func (w *Worker) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()
	defer func() {
		if !m.HasResponded() {
			m.Finish()
		}
	}()

	var task queue.FanoutTask
	if err := decodeJSON(m.Body, &task); err != nil {
		w.logger.Plain().WithError(err).Error("fanout: bad task payload")
		m.Finish()
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), task.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "fanout.process",
		attribute.Int64("alert_id", task.AlertID))
	defer span.End()

	if err := w.Process(ctx, task.AlertID); err != nil {
		tracing.SetSpanError(ctx, err)
		w.logger.WithContext(ctx).WithAlert(formatID(task.AlertID)).WithError(err).Error("fanout failed")
		m.Requeue(-1)
		return nil
	}
	m.Finish()
	return nil
}

// Process loads alertID, fans it out to every enabled webhook subscription
// for the alert's project, and publishes one delivery task per
// subscription, stopping at the first error and returning it.
func (w *Worker) Process(ctx context.Context, alertID int64) error {
	alert, err := w.repo.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}

	webhooks, err := w.repo.ListWebhooks(ctx, alert.ProjectID, true)
	if err != nil {
		return err
	}

	traceHeaders := tracing.PropagateTraceToNSQ(ctx)
	for _, wh := range webhooks {
		delivery, err := w.repo.EnsureDeliveryRow(ctx, alert.ProjectID, alert.ID, wh.ID)
		if err != nil {
			return err
		}

		task := queue.DeliverTask{
			DeliveryID:   delivery.ID,
			Attempt:      delivery.Attempts,
			PublishedAt:  time.Now().UTC().Format(time.RFC3339Nano),
			TraceHeaders: traceHeaders,
		}
		if err := w.publisher.Publish(ctx, queue.TopicDeliver, task); err != nil {
			return err
		}
		metrics.DeliveriesTotal.WithLabelValues("enqueued").Inc()
	}
	return nil
}
