// Package ingestworker consumes queue.TopicIngest tasks: it parses each
// event's timestamp, drops events whose timestamp fails to parse, batch
// inserts the remainder, and enqueues one evaluation task per invocation.
//
// Grounded on the teacher's NSQ consumer shape in cmd/worker/main.go and
// the event-batch insert pattern in internal/ingest/service.go.
package ingestworker

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

// Repository is the subset of *store.Store the ingest worker depends on.
type Repository interface {
	InsertEvents(ctx context.Context, deviceID int64, events []store.TelemetryEvent) (int, error)
}

// Publisher is the subset of *queue.Publisher the ingest worker depends on.
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

// parseTimestamp tries RFC3339Nano first, falling back to RFC3339.
func parseTimestamp(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (w *Worker) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()
	defer func() {
		if !m.HasResponded() {
			m.Finish()
		}
	}()

	var task queue.IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		w.logger.Plain().WithError(err).Error("ingestworker: bad task payload")
		m.Finish()
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), task.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "ingestworker.process",
		attribute.Int64("device_id", task.DeviceID),
		attribute.Int("event_count", len(task.Events)))
	defer span.End()

	if err := w.Process(ctx, task); err != nil {
		tracing.SetSpanError(ctx, err)
		w.logger.WithContext(ctx).WithError(err).Error("ingestworker: process failed")
		m.Requeue(-1)
		return nil
	}
	m.Finish()
	return nil
}

// Process parses and persists task's events for task.DeviceID, then
// enqueues one evaluation task regardless of how many events survived
// parsing (an evaluation run against whatever is already durable is
// harmless and keeps the pipeline simple).
func (w *Worker) Process(ctx context.Context, task queue.IngestTask) error {
	events := make([]store.TelemetryEvent, 0, len(task.Events))
	for _, raw := range task.Events {
		ts, ok := parseTimestamp(raw.TS)
		if !ok {
			w.logger.WithContext(ctx).WithDevice(formatID(task.DeviceID)).
				WithField("ts", raw.TS).Warn("ingestworker: dropping event with unparseable timestamp")
			metrics.EventsDroppedTotal.WithLabelValues("ts_parse_error").Inc()
			continue
		}
		events = append(events, store.TelemetryEvent{
			DeviceID: task.DeviceID,
			TS:       ts,
			Payload:  raw.Payload,
		})
	}

	if len(events) > 0 {
		written, err := w.repo.InsertEvents(ctx, task.DeviceID, events)
		if err != nil {
			return err
		}
		metrics.EventsIngestedTotal.Add(float64(written))
	}

	evalTask := queue.EvaluateTask{
		ProjectID:    task.ProjectID,
		DeviceID:     task.DeviceID,
		TraceHeaders: tracing.PropagateTraceToNSQ(ctx),
	}
	return w.publisher.Publish(ctx, queue.TopicEvaluate, evalTask)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
