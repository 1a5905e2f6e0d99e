package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-io/ridgeline/internal/breaker"
	"github.com/ridgeline-io/ridgeline/internal/config"
	"github.com/ridgeline-io/ridgeline/internal/kv"
	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/store"
)

func TestBackoffIsCappedAt1800PlusJitter(t *testing.T) {
	d := backoff(20) // 5*2^20 is huge, should clamp to 1800 + up to 30s jitter
	assert.GreaterOrEqual(t, d, 1800*time.Second)
	assert.LessOrEqual(t, d, 1830*time.Second)
}

func TestBackoffGrowsExponentiallyBeforeCap(t *testing.T) {
	d0 := backoff(0)
	assert.GreaterOrEqual(t, d0, 5*time.Second)
	assert.LessOrEqual(t, d0, 35*time.Second)

	// r=3: 5*2^3 = 40s base plus up to 30s jitter, always above backoff(0)'s
	// 5s base plus at most 5s jitter.
	d3 := backoff(3)
	assert.GreaterOrEqual(t, d3, 40*time.Second)
	assert.LessOrEqual(t, d3, 70*time.Second)
	assert.Greater(t, d3, d0)
}

func TestCanonicalJSONHasFullySortedKeyOrderAndNoHTMLEscaping(t *testing.T) {
	body, err := canonicalJSON(webhookPayload{
		AlertID: 1, DeviceID: 2, RuleID: 3,
		TriggeredAt: "2026-07-31T12:00:00Z",
		Details:     map[string]any{"b": 1, "a": "<tag>&"},
	})
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, `"alert_id":1`)
	// Every top-level key is sorted alphabetically, not struct-declaration
	// order: alert_id < details < device_id < rule_id < triggered_at.
	assert.Less(t, indexOf(s, "alert_id"), indexOf(s, "details"))
	assert.Less(t, indexOf(s, "details"), indexOf(s, "device_id"))
	assert.Less(t, indexOf(s, "device_id"), indexOf(s, "rule_id"))
	assert.Less(t, indexOf(s, "rule_id"), indexOf(s, "triggered_at"))
	assert.Less(t, indexOf(s, `"a"`), indexOf(s, `"b"`)) // nested map keys sorted
	assert.Contains(t, s, "<tag>&")                       // not HTML-escaped
	assert.NotContains(t, s, "\n")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestNewDeadLetterFields(t *testing.T) {
	d := store.WebhookDelivery{ID: 5, AlertID: 6, WebhookID: 7, Attempts: 3}
	dl := NewDeadLetter(d, "max_retries_exceeded", 503, "retryable_status_503")
	assert.Equal(t, DLQType, dl.Type)
	assert.Equal(t, int64(5), dl.DeliveryID)
	assert.Equal(t, 503, dl.HTTPStatus)
}

type fakeRepo struct {
	delivery      store.WebhookDelivery
	alert         store.Alert
	device        store.Device
	deviceMissing bool
	webhook       store.WebhookSubscription
	claimFails    bool
	lastOutcome   string
}

func (f *fakeRepo) GetDelivery(ctx context.Context, id int64) (store.WebhookDelivery, error) {
	return f.delivery, nil
}
func (f *fakeRepo) GetAlert(ctx context.Context, id int64) (store.Alert, error) { return f.alert, nil }
func (f *fakeRepo) GetDevice(ctx context.Context, id int64) (store.Device, error) {
	if f.deviceMissing {
		return store.Device{}, store.ErrNotFound
	}
	return f.device, nil
}
func (f *fakeRepo) GetWebhook(ctx context.Context, id int64) (store.WebhookSubscription, error) {
	return f.webhook, nil
}
func (f *fakeRepo) TryMarkSending(ctx context.Context, deliveryID int64) (bool, error) {
	return !f.claimFails, nil
}
func (f *fakeRepo) MarkSuccess(ctx context.Context, deliveryID int64, statusCode int) error {
	f.lastOutcome = "success"
	return nil
}
func (f *fakeRepo) MarkFailed(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error {
	f.lastOutcome = "failed:" + errMsg
	return nil
}
func (f *fakeRepo) MarkRetrying(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error {
	f.lastOutcome = "retrying:" + errMsg
	return nil
}

func newTestWorker(t *testing.T, repo *fakeRepo) *Worker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cb := breaker.New(kv.NewFromClient(client), 5, 60*time.Second)
	cfg := config.Worker{
		MaxAttempts: 8, BackoffBaseSecs: 5, BackoffCapSecs: 1800, BackoffJitterCap: 30,
		HTTPConnectTO: time.Second, HTTPReadTO: time.Second, HTTPWriteTO: time.Second, HTTPPoolTO: time.Second,
	}
	return NewWorker(repo, cb, nil, cfg, logging.New("test"))
}

func TestAttemptMarksSuccessOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(tsHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1, Attempts: 1},
		alert:    store.Alert{ID: 1, RuleID: 2, DeviceID: 3, Details: map[string]any{"x": 1}},
		webhook:  store.WebhookSubscription{ID: 1, URL: srv.URL, Enabled: true, Secret: "s3cret"},
	}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeSuccess, out)
	assert.Equal(t, "success", repo.lastOutcome)
}

func TestAttemptRetriesOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1, Attempts: 1},
		alert:    store.Alert{ID: 1},
		webhook:  store.WebhookSubscription{ID: 1, URL: srv.URL, Enabled: true},
	}
	w := newTestWorker(t, repo)

	out, delay, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeRetry, out)
	assert.Greater(t, delay, time.Duration(0))
	assert.Contains(t, repo.lastOutcome, "retryable_status_500")
}

func TestAttemptFailsOnNonRetryable4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1, Attempts: 1},
		alert:    store.Alert{ID: 1},
		webhook:  store.WebhookSubscription{ID: 1, URL: srv.URL, Enabled: true},
	}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeFailed, out)
	assert.Contains(t, repo.lastOutcome, "non_retryable_status_400")
}

func TestAttemptFailsAfterMaxRetriesExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1, Attempts: 8},
		alert:    store.Alert{ID: 1},
		webhook:  store.WebhookSubscription{ID: 1, URL: srv.URL, Enabled: true},
	}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeFailed, out)
	assert.Contains(t, repo.lastOutcome, "max_retries_exceeded")
}

func TestAttemptAbandonedWhenClaimFails(t *testing.T) {
	repo := &fakeRepo{claimFails: true}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeAbandoned, out)
}

func TestAttemptFailsWhenSubscriptionDisabled(t *testing.T) {
	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1},
		alert:    store.Alert{ID: 1},
		webhook:  store.WebhookSubscription{ID: 1, URL: "https://example.invalid", Enabled: false},
	}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeFailed, out)
	assert.Equal(t, "failed:subscription_disabled", repo.lastOutcome)
}

func TestAttemptFailsWhenDeviceMissing(t *testing.T) {
	repo := &fakeRepo{
		delivery:      store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1},
		alert:         store.Alert{ID: 1, DeviceID: 3},
		deviceMissing: true,
		webhook:       store.WebhookSubscription{ID: 1, URL: "https://example.invalid", Enabled: true},
	}
	w := newTestWorker(t, repo)

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeFailed, out)
	assert.Equal(t, "failed:device_missing", repo.lastOutcome)
}

func TestAttemptMarksRetryingWithURLWhenCircuitOpen(t *testing.T) {
	url := "https://example.invalid/hook"
	repo := &fakeRepo{
		delivery: store.WebhookDelivery{ID: 1, AlertID: 1, WebhookID: 1, Attempts: 1},
		alert:    store.Alert{ID: 1, DeviceID: 3},
		webhook:  store.WebhookSubscription{ID: 1, URL: url, Enabled: true},
	}
	w := newTestWorker(t, repo)
	for i := 0; i < 5; i++ {
		_, err := w.breaker.RecordFailure(context.Background(), url)
		require.NoError(t, err)
	}

	out, _, err := w.Attempt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, outcomeRetry, out)
	assert.Contains(t, repo.lastOutcome, "circuit_open:"+url)
}

func TestNewDeadLetterJSONRoundTrip(t *testing.T) {
	dl := NewDeadLetter(store.WebhookDelivery{ID: 1, AlertID: 2, WebhookID: 3, Attempts: 8}, "max_retries_exceeded", 500, "boom")
	body, err := json.Marshal(dl)
	require.NoError(t, err)
	var decoded DeadLetter
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, dl, decoded)
}
