package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/store"
)

type fakeRepo struct {
	alert       store.Alert
	webhooks    []store.WebhookSubscription
	deliveries  map[int64]store.WebhookDelivery
	ensureCalls int
}

func (f *fakeRepo) GetAlert(ctx context.Context, id int64) (store.Alert, error) {
	return f.alert, nil
}

func (f *fakeRepo) ListWebhooks(ctx context.Context, projectID int64, enabledOnly bool) ([]store.WebhookSubscription, error) {
	return f.webhooks, nil
}

func (f *fakeRepo) EnsureDeliveryRow(ctx context.Context, projectID, alertID, webhookID int64) (store.WebhookDelivery, error) {
	f.ensureCalls++
	if d, ok := f.deliveries[webhookID]; ok {
		return d, nil
	}
	return store.WebhookDelivery{ID: webhookID, ProjectID: projectID, AlertID: alertID, WebhookID: webhookID, Status: store.DeliveryPending}, nil
}

type recordingPublisher struct {
	published []queue.DeliverTask
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, task any) error {
	r.published = append(r.published, task.(queue.DeliverTask))
	return nil
}

func TestProcessFansOutToEveryEnabledWebhook(t *testing.T) {
	repo := &fakeRepo{
		alert: store.Alert{ID: 7, ProjectID: 1, RuleID: 2, DeviceID: 3},
		webhooks: []store.WebhookSubscription{
			{ID: 10, ProjectID: 1, URL: "https://a.example/hook", Enabled: true},
			{ID: 11, ProjectID: 1, URL: "https://b.example/hook", Enabled: true},
		},
		deliveries: map[int64]store.WebhookDelivery{},
	}
	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, logging.New("test"))

	err := w.Process(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, pub.published, 2)
	assert.Equal(t, 2, repo.ensureCalls)
}

func TestProcessWithNoWebhooksPublishesNothing(t *testing.T) {
	repo := &fakeRepo{alert: store.Alert{ID: 7, ProjectID: 1}}
	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, logging.New("test"))

	err := w.Process(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, pub.published)
}
