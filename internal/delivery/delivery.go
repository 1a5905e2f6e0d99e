// Package delivery executes a single webhook delivery attempt: it claims
// the delivery row, signs a canonical payload, POSTs it, classifies the
// outcome against the circuit breaker and retry budget, and transitions
// the delivery's state machine.
//
// Grounded on the teacher's cmd/worker/main.go consumer loop (signing,
// HTTP client shape, requeue-with-delay) and the original's
// app/workers/tasks/webhook_delivery.py outcome classification.
package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/ridgeline-io/ridgeline/internal/breaker"
	"github.com/ridgeline-io/ridgeline/internal/config"
	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/store"
	"github.com/ridgeline-io/ridgeline/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	tsHeader  = "X-Telemetry-Timestamp"
	sigHeader = "X-Telemetry-Signature"

	DLQType = "delivery.dlq"
)

// DeadLetter is the payload published to the DLQ topic once a delivery
// exhausts its retry budget.
type DeadLetter struct {
	Type       string `json:"type"`
	Version    string `json:"version"`
	At         string `json:"at"`
	DeliveryID int64  `json:"delivery_id"`
	AlertID    int64  `json:"alert_id"`
	WebhookID  int64  `json:"webhook_id"`
	Reason     string `json:"reason"`
	Attempt    int    `json:"attempt"`
	HTTPStatus int    `json:"http_status,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

func NewDeadLetter(d store.WebhookDelivery, reason string, httpStatus int, lastErr string) DeadLetter {
	return DeadLetter{
		Type:       DLQType,
		Version:    "v1",
		At:         time.Now().UTC().Format(time.RFC3339Nano),
		DeliveryID: d.ID,
		AlertID:    d.AlertID,
		WebhookID:  d.WebhookID,
		Reason:     reason,
		Attempt:    d.Attempts,
		HTTPStatus: httpStatus,
		LastError:  lastErr,
	}
}

// Repository is the subset of *store.Store the delivery worker depends on.
type Repository interface {
	GetDelivery(ctx context.Context, id int64) (store.WebhookDelivery, error)
	GetAlert(ctx context.Context, id int64) (store.Alert, error)
	GetDevice(ctx context.Context, id int64) (store.Device, error)
	GetWebhook(ctx context.Context, id int64) (store.WebhookSubscription, error)
	TryMarkSending(ctx context.Context, deliveryID int64) (bool, error)
	MarkSuccess(ctx context.Context, deliveryID int64, statusCode int) error
	MarkFailed(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error
	MarkRetrying(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error
}

// Publisher is the subset of *queue.Publisher the delivery worker
// depends on, used only to emit dead letters; retries are requeued on
// the same NSQ message rather than republished.
type Publisher interface {
	Publish(ctx context.Context, topic string, task any) error
}

type Worker struct {
	repo    Repository
	breaker *breaker.Breaker
	dlq     Publisher
	cfg     config.Worker
	http    *http.Client
	logger  *logging.Logger
}

func NewWorker(repo Repository, cb *breaker.Breaker, dlq Publisher, cfg config.Worker, logger *logging.Logger) *Worker {
	return &Worker{
		repo:    repo,
		breaker: cb,
		dlq:     dlq,
		cfg:     cfg,
		logger:  logger,
		http: &http.Client{
			Timeout: cfg.HTTPConnectTO + cfg.HTTPReadTO + cfg.HTTPWriteTO + cfg.HTTPPoolTO,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.HTTPConnectTO,
				}).DialContext,
				ResponseHeaderTimeout: cfg.HTTPReadTO,
				IdleConnTimeout:       cfg.HTTPPoolTO,
			},
		},
	}
}

func (w *Worker) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()
	defer func() {
		if !m.HasResponded() {
			m.Finish()
		}
	}()

	var task queue.DeliverTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		w.logger.Plain().WithError(err).Error("delivery: bad task payload")
		m.Finish()
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), task.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "delivery.attempt",
		attribute.Int64("delivery_id", task.DeliveryID),
		attribute.Int("attempt", task.Attempt))
	defer span.End()

	outcome, retryDelay, err := w.Attempt(ctx, task.DeliveryID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		w.logger.WithContext(ctx).WithDelivery(formatID(task.DeliveryID)).WithError(err).Error("delivery: attempt errored")
		m.Requeue(-1)
		return nil
	}

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	metrics.DeliveriesTotal.WithLabelValues(string(outcome)).Inc()

	if outcome == outcomeRetry {
		m.Requeue(retryDelay)
		return nil
	}
	m.Finish()
	return nil
}

type outcome string

const (
	outcomeSuccess   outcome = "success"
	outcomeRetry     outcome = "retrying"
	outcomeFailed    outcome = "failed"
	outcomeAbandoned outcome = "abandoned" // another worker already holds the delivery
)

// Attempt executes a single attempt for deliveryID, returning the
// resulting outcome and, for outcomeRetry, the delay to requeue with.
func (w *Worker) Attempt(ctx context.Context, deliveryID int64) (outcome, time.Duration, error) {
	claimed, err := w.repo.TryMarkSending(ctx, deliveryID)
	if err != nil {
		return "", 0, err
	}
	if !claimed {
		return outcomeAbandoned, 0, nil
	}

	delivery, err := w.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		return "", 0, err
	}

	alert, err := w.repo.GetAlert(ctx, delivery.AlertID)
	if err != nil {
		_ = w.repo.MarkFailed(ctx, deliveryID, nil, "alert_missing")
		return outcomeFailed, 0, nil
	}

	if _, err := w.repo.GetDevice(ctx, alert.DeviceID); err != nil {
		_ = w.repo.MarkFailed(ctx, deliveryID, nil, "device_missing")
		return outcomeFailed, 0, nil
	}

	webhook, err := w.repo.GetWebhook(ctx, delivery.WebhookID)
	if err != nil {
		_ = w.repo.MarkFailed(ctx, deliveryID, nil, "subscription_missing")
		return outcomeFailed, 0, nil
	}
	if !webhook.Enabled {
		_ = w.repo.MarkFailed(ctx, deliveryID, nil, "subscription_disabled")
		return outcomeFailed, 0, nil
	}

	open, err := w.breaker.IsOpen(ctx, webhook.URL)
	if err != nil {
		return "", 0, err
	}
	if open {
		return w.retryOrFail(ctx, delivery, nil, fmt.Sprintf("circuit_open:%s", webhook.URL))
	}

	payload := webhookPayload{
		AlertID:     alert.ID,
		DeviceID:    alert.DeviceID,
		RuleID:      alert.RuleID,
		TriggeredAt: alert.CreatedAt.Format(time.RFC3339),
		Details:     alert.Details,
	}
	body, err := canonicalJSON(payload)
	if err != nil {
		return "", 0, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tsHeader, timestamp)
	if webhook.Secret != "" {
		mac := hmac.New(sha256.New, []byte(webhook.Secret))
		mac.Write([]byte(timestamp + "."))
		mac.Write(body)
		req.Header.Set(sigHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, doErr := w.http.Do(req)
	if doErr != nil {
		if _, err := w.breaker.RecordFailure(ctx, webhook.URL); err != nil {
			return "", 0, err
		}
		return w.retryOrFail(ctx, delivery, nil, fmt.Sprintf("http_error:%s", classifyTransportError(doErr)))
	}
	defer resp.Body.Close()
	status := resp.StatusCode

	switch {
	case status >= 200 && status < 300:
		if err := w.breaker.RecordSuccess(ctx, webhook.URL); err != nil {
			return "", 0, err
		}
		if err := w.repo.MarkSuccess(ctx, deliveryID, status); err != nil {
			return "", 0, err
		}
		return outcomeSuccess, 0, nil

	case status == 408 || status == 429 || status >= 500:
		if _, err := w.breaker.RecordFailure(ctx, webhook.URL); err != nil {
			return "", 0, err
		}
		return w.retryOrFail(ctx, delivery, &status, fmt.Sprintf("retryable_status_%d", status))

	default:
		if _, err := w.breaker.RecordFailure(ctx, webhook.URL); err != nil {
			return "", 0, err
		}
		_ = w.repo.MarkFailed(ctx, deliveryID, &status, fmt.Sprintf("non_retryable_status_%d", status))
		return outcomeFailed, 0, nil
	}
}

// retryOrFail marks delivery retrying (and returns the backoff delay to
// requeue with), or failed if the retry budget is exhausted.
func (w *Worker) retryOrFail(ctx context.Context, d store.WebhookDelivery, statusCode *int, reason string) (outcome, time.Duration, error) {
	if d.Attempts >= w.cfg.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, d.ID, statusCode, "max_retries_exceeded:"+reason); err != nil {
			return "", 0, err
		}
		metrics.DLQTotal.Inc()
		if w.dlq != nil {
			_ = w.dlq.Publish(ctx, dlqTopicName, NewDeadLetter(d, "max_retries_exceeded", statusCodeOrZero(statusCode), reason))
		}
		return outcomeFailed, 0, nil
	}
	if err := w.repo.MarkRetrying(ctx, d.ID, statusCode, reason); err != nil {
		return "", 0, err
	}
	metrics.RetriesTotal.WithLabelValues(reason).Inc()
	// d.Attempts was already incremented by TryMarkSending to count the
	// attempt just made, so the zero-based retry count for the upcoming
	// attempt is one less.
	delay := backoff(d.Attempts - 1)
	return outcomeRetry, delay, nil
}

// dlqTopicName is the topic every dead letter is published to.
// config.NSQ.DLQTopic (NSQ_TOPIC_DLQ) is not consulted here.
const dlqTopicName = "ridgeline.deliver.dlq"

func statusCodeOrZero(status *int) int {
	if status == nil {
		return 0
	}
	return *status
}

func classifyTransportError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "transport"
}

func formatID(id int64) string {
	return fmt.Sprintf("%d", id)
}
