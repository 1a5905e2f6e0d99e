package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

type Alert struct {
	ID        int64          `json:"id"`
	ProjectID int64          `json:"project_id"`
	RuleID    int64          `json:"rule_id"`
	DeviceID  int64          `json:"device_id"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"triggered_at"`
}

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	var detailsJSON []byte
	if err := row.Scan(&a.ID, &a.ProjectID, &a.RuleID, &a.DeviceID, &detailsJSON, &a.CreatedAt); err != nil {
		return Alert{}, err
	}
	_ = json.Unmarshal(detailsJSON, &a.Details)
	return a, nil
}

const alertColumns = `id, project_id, rule_id, device_id, details, created_at`

// CreateAlertUnderLock takes a Postgres advisory transaction lock keyed on
// (device_id, rule_id) before checking the rule's cooldown window and
// inserting the alert, so concurrent evaluators for the same rule/device
// pair never both fire. Returns (alert, true, nil) when a new alert was
// created, or (Alert{}, false, nil) when the rule is still within its
// cooldown and no alert was created.
func (s *Store) CreateAlertUnderLock(ctx context.Context, rule Rule, deviceID int64, details map[string]any) (Alert, bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return Alert{}, false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Alert{}, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, deviceID, rule.ID); err != nil {
		return Alert{}, false, err
	}

	var lastFired *time.Time
	err = tx.QueryRow(ctx, `
		SELECT created_at FROM alerts
		WHERE rule_id = $1 AND device_id = $2
		ORDER BY created_at DESC LIMIT 1`, rule.ID, deviceID,
	).Scan(&lastFired)
	if err != nil && err != pgx.ErrNoRows {
		return Alert{}, false, err
	}

	cooldown := time.Duration(rule.CooldownSeconds) * time.Second
	if lastFired != nil && time.Since(*lastFired) < cooldown {
		return Alert{}, false, nil
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO alerts (project_id, rule_id, device_id, details)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING `+alertColumns,
		rule.ProjectID, rule.ID, deviceID, detailsJSON,
	)
	alert, err := scanAlert(row)
	if err != nil {
		return Alert{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Alert{}, false, err
	}
	return alert, true, nil
}

func (s *Store) GetAlert(ctx context.Context, id int64) (Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err == pgx.ErrNoRows {
		return Alert{}, ErrNotFound
	}
	return a, err
}

func (s *Store) ListAlerts(ctx context.Context, projectID int64, limit int) ([]Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAlertsForDevice(ctx context.Context, deviceID int64, limit int) ([]Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
