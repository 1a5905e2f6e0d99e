package evaluation

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nsqio/go-nsq"

	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Publisher is the subset of *queue.Publisher the evaluation worker
// depends on, used to fan an evaluation's created alerts onward.
type Publisher interface {
	Publish(ctx context.Context, topic string, task any) error
}

// Worker adapts an Engine to consume queue.TopicEvaluate tasks, publishing
// one queue.FanoutTask per alert the engine creates.
type Worker struct {
	engine    *Engine
	publisher Publisher
}

func NewWorker(engine *Engine, publisher Publisher) *Worker {
	return &Worker{engine: engine, publisher: publisher}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// HandleMessage implements nsq.Handler, consuming a queue.EvaluateTask per
// message.
func (w *Worker) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()
	defer func() {
		if !m.HasResponded() {
			m.Finish()
		}
	}()

	var task queue.EvaluateTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		w.engine.logger.Plain().WithError(err).Error("evaluation: bad task payload")
		m.Finish()
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), task.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "evaluation.process",
		attribute.Int64("device_id", task.DeviceID))
	defer span.End()

	if err := w.Process(ctx, task); err != nil {
		tracing.SetSpanError(ctx, err)
		w.engine.logger.WithContext(ctx).WithDevice(formatID(task.DeviceID)).WithError(err).Error("evaluation: process failed")
		m.Requeue(-1)
		return nil
	}
	m.Finish()
	return nil
}

// Process evaluates task.DeviceID and publishes one fan-out task per alert
// created.
func (w *Worker) Process(ctx context.Context, task queue.EvaluateTask) error {
	alerts, err := w.engine.EvaluateDevice(ctx, task.DeviceID)
	if err != nil {
		return err
	}

	traceHeaders := tracing.PropagateTraceToNSQ(ctx)
	for _, alert := range alerts {
		fanoutTask := queue.FanoutTask{
			AlertID:      alert.ID,
			TraceHeaders: traceHeaders,
		}
		if err := w.publisher.Publish(ctx, queue.TopicFanout, fanoutTask); err != nil {
			return err
		}
	}
	return nil
}
