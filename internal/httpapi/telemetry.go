package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/store"
)

// maxBatchSize is the spec's hard cap on events accepted per ingest call;
// exactly this many is accepted, one more is rejected.
const maxBatchSize = 5000

type telemetryEventIn struct {
	TS   string         `json:"ts" validate:"required"`
	Data map[string]any `json:"data" validate:"required"`
}

type telemetryBatchIn struct {
	DeviceExternalID string             `json:"device_external_id" validate:"required"`
	Events           []telemetryEventIn `json:"events"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	projectID := authProjectID(r.Context())

	var req telemetryBatchIn
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if len(req.Events) == 0 {
		writeBadRequest(w, "empty batch")
		return
	}
	if len(req.Events) > maxBatchSize {
		writeBadRequest(w, "batch too large")
		return
	}

	device, err := s.deps.Store.GetDeviceByExternalID(r.Context(), projectID, req.DeviceExternalID)
	if err != nil {
		if err == store.ErrNotFound {
			writeNotFound(w, "device not found")
			return
		}
		writeStoreError(w, err)
		return
	}

	rawEvents := make([]queue.RawEvent, 0, len(req.Events))
	for _, e := range req.Events {
		rawEvents = append(rawEvents, queue.RawEvent{TS: e.TS, Payload: e.Data})
	}

	task := queue.IngestTask{
		ProjectID:    projectID,
		DeviceID:     device.ID,
		Events:       rawEvents,
		TraceHeaders: queue.TraceHeaders(r.Context()),
	}
	if err := s.deps.Publisher.Publish(r.Context(), s.deps.IngestTopic, task); err != nil {
		writeDetail(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(rawEvents), "device_id": device.ID})
}

func queryLimit(r *http.Request, def, max int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *server) handleLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForQuery(w, r)
	if !ok {
		return
	}
	events, err := s.deps.Store.LastNEvents(r.Context(), device.ID, queryLimit(r, 1, 1000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleTelemetrySince(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForQuery(w, r)
	if !ok {
		return
	}
	sinceRaw := r.URL.Query().Get("since_ts")
	since, err := time.Parse(time.RFC3339, sinceRaw)
	if err != nil {
		writeBadRequest(w, "invalid since_ts")
		return
	}
	events, err := s.deps.Store.ListSince(r.Context(), device.ID, since, queryLimit(r, 100, 5000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleRecentTelemetry(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForQuery(w, r)
	if !ok {
		return
	}
	events, err := s.deps.Store.LastNEvents(r.Context(), device.ID, queryLimit(r, 100, 5000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) deviceForQuery(w http.ResponseWriter, r *http.Request) (store.Device, bool) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeBadRequest(w, "invalid device id")
		return store.Device{}, false
	}
	device, err := s.deps.Store.GetDevice(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return store.Device{}, false
	}
	if device.ProjectID != authProjectID(r.Context()) {
		writeNotFound(w, "not found")
		return store.Device{}, false
	}
	return device, true
}
