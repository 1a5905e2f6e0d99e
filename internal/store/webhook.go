package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type WebhookSubscription struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func scanWebhook(row pgx.Row) (WebhookSubscription, error) {
	var w WebhookSubscription
	if err := row.Scan(&w.ID, &w.ProjectID, &w.URL, &w.Secret, &w.Enabled, &w.CreatedAt); err != nil {
		return WebhookSubscription{}, err
	}
	return w, nil
}

const webhookColumns = `id, project_id, url, secret, enabled, created_at`

func (s *Store) CreateWebhook(ctx context.Context, projectID int64, url, secret string) (WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_subscriptions (project_id, url, secret, enabled)
		VALUES ($1, $2, $3, true)
		RETURNING `+webhookColumns,
		projectID, url, secret,
	)
	return scanWebhook(row)
}

func (s *Store) GetWebhook(ctx context.Context, id int64) (WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE id = $1`, id)
	w, err := scanWebhook(row)
	if err == pgx.ErrNoRows {
		return WebhookSubscription{}, ErrNotFound
	}
	return w, err
}

func (s *Store) ListWebhooks(ctx context.Context, projectID int64, enabledOnly bool) ([]WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions WHERE project_id = $1`
	if enabledOnly {
		query += ` AND enabled = true`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WebhookSubscription
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DisableWebhook flips a subscription to disabled without deleting it, so
// past deliveries keep a valid foreign key.
func (s *Store) DisableWebhook(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE webhook_subscriptions SET enabled = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySending  DeliveryStatus = "sending"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliverySuccess  DeliveryStatus = "success"
	DeliveryFailed   DeliveryStatus = "failed"
)

// sendingStaleAfter bounds how long a delivery may sit in "sending" before
// another worker is allowed to reclaim it, covering a worker crash mid-send.
const sendingStaleAfter = 120 * time.Second

type WebhookDelivery struct {
	ID             int64          `json:"id"`
	ProjectID      int64          `json:"project_id"`
	AlertID        int64          `json:"alert_id"`
	WebhookID      int64          `json:"webhook_id"`
	Status         DeliveryStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	LastStatusCode *int           `json:"last_status_code,omitempty"`
	LastError      *string        `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
}

const deliveryColumns = `id, project_id, alert_id, webhook_id, status, attempts, last_status_code, last_error, created_at, updated_at, delivered_at`

func scanDelivery(row pgx.Row) (WebhookDelivery, error) {
	var d WebhookDelivery
	if err := row.Scan(&d.ID, &d.ProjectID, &d.AlertID, &d.WebhookID, &d.Status, &d.Attempts,
		&d.LastStatusCode, &d.LastError, &d.CreatedAt, &d.UpdatedAt, &d.DeliveredAt); err != nil {
		return WebhookDelivery{}, err
	}
	return d, nil
}

// EnsureDeliveryRow idempotently inserts the (alert, webhook) delivery row,
// returning the existing row's id on conflict rather than failing.
func (s *Store) EnsureDeliveryRow(ctx context.Context, projectID, alertID, webhookID int64) (WebhookDelivery, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (project_id, alert_id, webhook_id, status, attempts)
		VALUES ($1, $2, $3, 'pending', 0)
		ON CONFLICT ON CONSTRAINT uq_delivery_alert_webhook
		DO UPDATE SET updated_at = webhook_deliveries.updated_at
		RETURNING `+deliveryColumns,
		projectID, alertID, webhookID,
	)
	return scanDelivery(row)
}

func (s *Store) GetDelivery(ctx context.Context, id int64) (WebhookDelivery, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err == pgx.ErrNoRows {
		return WebhookDelivery{}, ErrNotFound
	}
	return d, err
}

// TryMarkSending claims a delivery for sending if it is pending, retrying,
// or stuck in "sending" past sendingStaleAfter. Reports whether the claim
// succeeded; a false result means another worker already holds it.
func (s *Store) TryMarkSending(ctx context.Context, deliveryID int64) (bool, error) {
	staleBefore := time.Now().Add(-sendingStaleAfter)
	ct, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = 'sending', attempts = attempts + 1, updated_at = now(),
		    last_error = NULL, last_status_code = NULL
		WHERE id = $1
		AND (
			status IN ('pending', 'retrying')
			OR (status = 'sending' AND updated_at < $2)
		)`, deliveryID, staleBefore)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) MarkSuccess(ctx context.Context, deliveryID int64, statusCode int) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = 'success', last_status_code = $2, delivered_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'sending'`, deliveryID, statusCode)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = 'failed', last_status_code = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'sending'`, deliveryID, statusCode, errMsg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) MarkRetrying(ctx context.Context, deliveryID int64, statusCode *int, errMsg string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = 'retrying', last_status_code = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'sending'`, deliveryID, statusCode, errMsg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) ListDeliveriesForProject(ctx context.Context, projectID int64, status *DeliveryStatus, limit int) ([]WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE project_id = $1`
	args := []any{projectID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListDeliveriesForAlert(ctx context.Context, alertID int64) ([]WebhookDelivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE alert_id = $1 ORDER BY id`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
