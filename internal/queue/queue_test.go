package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestTaskRoundTripsJSON(t *testing.T) {
	task := IngestTask{
		ProjectID: 1,
		DeviceID:  2,
		Events: []RawEvent{
			{TS: "2026-07-31T12:00:00Z", Payload: map[string]any{"temp": 41.2}},
		},
		TraceHeaders: map[string]string{"traceparent": "00-abc-def-01"},
	}
	body, err := json.Marshal(task)
	assert.NoError(t, err)

	var decoded IngestTask
	assert.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, task, decoded)
}

func TestDeliverTaskOmitsEmptyTraceHeaders(t *testing.T) {
	task := DeliverTask{DeliveryID: 9, Attempt: 1, PublishedAt: "2026-07-31T12:00:00Z"}
	body, err := json.Marshal(task)
	assert.NoError(t, err)
	assert.NotContains(t, string(body), "trace_headers")
}

func TestTraceHeadersEmptyWithoutActiveSpan(t *testing.T) {
	headers := TraceHeaders(context.Background())
	assert.Empty(t, headers)
}

func TestNewPublisherConstructsProducer(t *testing.T) {
	// nsq.NewProducer only validates the address format; it doesn't dial.
	pub, err := NewPublisher("127.0.0.1:4150")
	assert.NoError(t, err)
	assert.NotNil(t, pub)
	pub.Stop()
}
