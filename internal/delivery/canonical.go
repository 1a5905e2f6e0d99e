package delivery

import (
	"bytes"
	"encoding/json"
)

// webhookPayload is the shape signed and sent on the wire. Field order
// here is irrelevant to the wire format: canonicalJSON round-trips the
// struct through a map so every key, at every level including the outer
// envelope, is sorted alphabetically — matching the original's
// json.dumps(payload, separators=(",", ":"), sort_keys=True), which sorts
// the whole structure, not just nested maps.
type webhookPayload struct {
	AlertID     int64          `json:"alert_id"`
	DeviceID    int64          `json:"device_id"`
	RuleID      int64          `json:"rule_id"`
	TriggeredAt string         `json:"triggered_at"`
	Details     map[string]any `json:"details"`
}

// canonicalJSON encodes payload with every key sorted alphabetically, no
// HTML escaping, and no indentation. Go's encoding/json only sorts
// map[string]any keys, never struct fields (those keep declaration
// order), so the struct is first marshaled normally and then decoded
// into a map[string]any before the final encode — that second pass is
// what puts the outer envelope (alert_id, details, device_id, rule_id,
// triggered_at) into true sorted order alongside Details.
func canonicalJSON(payload webhookPayload) ([]byte, error) {
	structured, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(structured, &asMap); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(asMap); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
