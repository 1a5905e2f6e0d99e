package ingestworker

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
	inserted []store.TelemetryEvent
}

func (f *fakeRepo) InsertEvents(ctx context.Context, deviceID int64, events []store.TelemetryEvent) (int, error) {
	f.inserted = append(f.inserted, events...)
	return len(events), nil
}

type recordingPublisher struct {
	published []queue.EvaluateTask
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, task any) error {
	r.published = append(r.published, task.(queue.EvaluateTask))
	return nil
}

func TestProcessDropsUnparseableTimestampsAndKeepsRest(t *testing.T) {
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, logging.New("test"))

	task := queue.IngestTask{
		ProjectID: 1,
		DeviceID:  2,
		Events: []queue.RawEvent{
			{TS: "2026-07-31T12:00:00Z", Payload: map[string]any{"temp": 1.0}},
			{TS: "not-a-timestamp", Payload: map[string]any{"temp": 2.0}},
			{TS: "2026-07-31T12:00:00.123456789Z", Payload: map[string]any{"temp": 3.0}},
		},
	}

	err := w.Process(context.Background(), task)
	require.NoError(t, err)
	assert.Len(t, repo.inserted, 2)
	assert.Len(t, pub.published, 1)
	assert.Equal(t, int64(2), pub.published[0].DeviceID)
}

func TestProcessStillEnqueuesEvaluationWhenAllEventsDropped(t *testing.T) {
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	w := NewWorker(repo, pub, logging.New("test"))

	task := queue.IngestTask{
		DeviceID: 5,
		Events:   []queue.RawEvent{{TS: "garbage"}},
	}

	err := w.Process(context.Background(), task)
	require.NoError(t, err)
	assert.Empty(t, repo.inserted)
	assert.Len(t, pub.published, 1)
}

func TestParseTimestampAcceptsRFC3339AndNano(t *testing.T) {
	_, ok := parseTimestamp("2026-07-31T12:00:00Z")
	assert.True(t, ok)
	_, ok = parseTimestamp("2026-07-31T12:00:00.5Z")
	assert.True(t, ok)
	_, ok = parseTimestamp("")
	assert.False(t, ok)
}
