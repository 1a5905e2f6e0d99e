package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

type TelemetryEvent struct {
	ID       int64          `json:"id"`
	DeviceID int64          `json:"device_id"`
	TS       time.Time      `json:"ts"`
	Payload  map[string]any `json:"payload"`
}

// RawTelemetryEvent is a telemetry event still carrying an unparsed
// timestamp string, as received off the ingest queue.
type RawTelemetryEvent struct {
	TS      string
	Payload map[string]any
}

// InsertEvents bulk-inserts events for one device in a single round trip
// using pgx's batch protocol, returning the number of rows written.
func (s *Store) InsertEvents(ctx context.Context, deviceID int64, events []TelemetryEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		payloadJSON, err := json.Marshal(e.Payload)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO telemetry_events (device_id, ts, payload)
			VALUES ($1, $2, $3::jsonb)`, deviceID, e.TS, payloadJSON)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range events {
		if _, err := br.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// LastNEvents returns the most recent n events for a device, ordered
// (ts DESC, id DESC) as required by the evaluation engine's window read.
func (s *Store) LastNEvents(ctx context.Context, deviceID int64, n int) ([]TelemetryEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, device_id, ts, payload FROM telemetry_events
		WHERE device_id = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2`, deviceID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryEvent
	for rows.Next() {
		var e TelemetryEvent
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.TS, &payloadJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListSince returns events for a device at or after sinceTS, most recent
// first, capped at limit.
func (s *Store) ListSince(ctx context.Context, deviceID int64, sinceTS time.Time, limit int) ([]TelemetryEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, device_id, ts, payload FROM telemetry_events
		WHERE device_id = $1 AND ts >= $2
		ORDER BY ts DESC, id DESC
		LIMIT $3`, deviceID, sinceTS, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryEvent
	for rows.Next() {
		var e TelemetryEvent
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.TS, &payloadJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
