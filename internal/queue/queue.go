// Package queue defines the JSON task envelopes passed between pipeline
// stages over NSQ, and a thin Publisher wrapping *nsq.Producer.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/ridgeline-io/ridgeline/internal/tracing"
)

// Topic names, equal to the config.NSQ defaults. The ingest, evaluation
// and fan-out workers publish to these constants directly; the
// NSQ_TOPIC_* overrides in config.NSQ are read only by the consumers in
// cmd/worker and by the HTTP ingest endpoint.
const (
	TopicIngest   = "ridgeline.ingest"
	TopicEvaluate = "ridgeline.evaluate"
	TopicFanout   = "ridgeline.fanout"
	TopicDeliver  = "ridgeline.deliver"
)

// IngestTask carries one device's raw telemetry batch from the HTTP
// ingest handler to internal/ingestworker.
type IngestTask struct {
	ProjectID    int64             `json:"project_id"`
	DeviceID     int64             `json:"device_id"`
	Events       []RawEvent        `json:"events"`
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

type RawEvent struct {
	TS      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// EvaluateTask tells internal/evaluation which device to re-check against
// its applicable rules.
type EvaluateTask struct {
	ProjectID    int64             `json:"project_id"`
	DeviceID     int64             `json:"device_id"`
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

// FanoutTask tells internal/fanout which alert to fan out to webhook
// subscriptions.
type FanoutTask struct {
	AlertID      int64             `json:"alert_id"`
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

// DeliverTask tells internal/delivery which delivery row to attempt (or
// retry) sending.
type DeliverTask struct {
	DeliveryID   int64             `json:"delivery_id"`
	Attempt      int               `json:"attempt"`
	PublishedAt  string            `json:"published_at"` // RFC3339Nano
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

// Publisher wraps an *nsq.Producer, marshaling task payloads to JSON. It
// does not fill TraceHeaders; callers set them before publishing.
type Publisher struct {
	producer *nsq.Producer
}

func NewPublisher(nsqdTCPAddr string) (*Publisher, error) {
	producer, err := nsq.NewProducer(nsqdTCPAddr, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	return &Publisher{producer: producer}, nil
}

func (p *Publisher) Stop() {
	p.producer.Stop()
}

// Publish marshals task to JSON and publishes it to topic. task is
// expected to be one of *IngestTask, *EvaluateTask, *FanoutTask,
// *DeliverTask (or an equivalent struct with a TraceHeaders field) so
// trace propagation round-trips through internal/tracing.
func (p *Publisher) Publish(ctx context.Context, topic string, task any) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.producer.Publish(topic, body)
}

// DeferredPublish publishes to a channel's delay queue, used by
// internal/delivery to schedule a retry without blocking the worker.
func (p *Publisher) DeferredPublish(topic string, delay time.Duration, task any) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.producer.DeferredPublish(topic, delay, body)
}

// TraceHeaders returns the current span's propagation headers for
// embedding in an outgoing task envelope.
func TraceHeaders(ctx context.Context) map[string]string {
	return tracing.PropagateTraceToNSQ(ctx)
}
