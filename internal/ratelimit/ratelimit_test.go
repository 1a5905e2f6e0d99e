package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLimits() Limits {
	return Limits{
		IngestPerMinute: 2,
		IngestPerHour:   1000,
		WebhookPerHour:  1,
		APIKeyPerHour:   1,
		RulePerHour:     1,
		RuleBindPerHour: 1,
		DevicePerHour:   1,
	}
}

func TestAllowRespectsPerMinuteIngestBucketBeforeHourlyCap(t *testing.T) {
	l := New(testLimits())
	assert.True(t, l.Allow(EnvelopeIngest, "keyA"))
	assert.True(t, l.Allow(EnvelopeIngest, "keyA"))
	assert.False(t, l.Allow(EnvelopeIngest, "keyA")) // burst of 2 exhausted
}

func TestAllowTracksSubjectsIndependently(t *testing.T) {
	l := New(testLimits())
	assert.True(t, l.Allow(EnvelopeWebhook, "keyA"))
	assert.False(t, l.Allow(EnvelopeWebhook, "keyA"))
	assert.True(t, l.Allow(EnvelopeWebhook, "keyB"))
}

func TestSubjectPrefersAPIKeyPrefixOverRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/telemetry", nil)
	r.Header.Set("X-API-Key", "ab12cd34.secretsecret")
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ab12cd34", Subject(r))
}

func TestSubjectFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/telemetry", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1:5555", Subject(r))
}

func TestMiddlewareRejectsOverQuotaWith429(t *testing.T) {
	l := New(testLimits())
	called := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(200)
	})
	h := l.Middleware(EnvelopeAPIKey, next)

	r := httptest.NewRequest("POST", "/projects/1/api-keys", nil)
	r.RemoteAddr = "10.0.0.1:1"

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r)
	assert.Equal(t, 200, w1.Code)

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r)
	assert.Equal(t, 429, w2.Code)
	assert.Equal(t, 1, called)
}
