package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type RuleScope string

const (
	ScopeAll      RuleScope = "ALL"
	ScopeExplicit RuleScope = "EXPLICIT"
	ScopeTag      RuleScope = "TAG"
)

type Rule struct {
	ID               int64     `json:"id"`
	ProjectID        int64     `json:"project_id"`
	Name             string    `json:"name"`
	Metric           string    `json:"metric"`
	Operator         string    `json:"operator"`
	Threshold        float64   `json:"threshold"`
	WindowN          int       `json:"window_n"`
	RequiredK        int       `json:"required_k"`
	CooldownSeconds  int       `json:"cooldown_seconds"`
	Enabled          bool      `json:"enabled"`
	Scope            RuleScope `json:"scope"`
	Tag              *string   `json:"tag,omitempty"`
}

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Metric, &r.Operator, &r.Threshold,
		&r.WindowN, &r.RequiredK, &r.CooldownSeconds, &r.Enabled, &r.Scope, &r.Tag); err != nil {
		return Rule{}, err
	}
	return r, nil
}

const ruleColumns = `id, project_id, name, metric, operator, threshold, window_n, required_k, cooldown_seconds, enabled, scope, tag`

func (s *Store) CreateRule(ctx context.Context, r Rule) (Rule, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rules (project_id, name, metric, operator, threshold, window_n, required_k, cooldown_seconds, enabled, scope, tag)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+ruleColumns,
		r.ProjectID, r.Name, r.Metric, r.Operator, r.Threshold, r.WindowN, r.RequiredK,
		r.CooldownSeconds, r.Enabled, r.Scope, r.Tag,
	)
	return scanRule(row)
}

func (s *Store) GetRule(ctx context.Context, id int64) (Rule, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id)
	r, err := scanRule(row)
	if err == pgx.ErrNoRows {
		return Rule{}, ErrNotFound
	}
	return r, err
}

func (s *Store) ListRules(ctx context.Context, projectID int64, enabledOnly bool) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE project_id = $1`
	if enabledOnly {
		query += ` AND enabled = true`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRule(ctx context.Context, r Rule) (Rule, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rules SET name=$2, metric=$3, operator=$4, threshold=$5, window_n=$6,
			required_k=$7, cooldown_seconds=$8, enabled=$9, scope=$10, tag=$11
		WHERE id = $1
		RETURNING `+ruleColumns,
		r.ID, r.Name, r.Metric, r.Operator, r.Threshold, r.WindowN, r.RequiredK,
		r.CooldownSeconds, r.Enabled, r.Scope, r.Tag,
	)
	out, err := scanRule(row)
	if err == pgx.ErrNoRows {
		return Rule{}, ErrNotFound
	}
	return out, err
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BindDevices associates rule_id with every device_id, skipping pairs that
// already exist.
func (s *Store) BindDevices(ctx context.Context, ruleID int64, deviceIDs []int64) error {
	batch := &pgx.Batch{}
	for _, deviceID := range deviceIDs {
		batch.Queue(`
			INSERT INTO rule_devices (rule_id, device_id) VALUES ($1, $2)
			ON CONFLICT (rule_id, device_id) DO NOTHING`, ruleID, deviceID)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range deviceIDs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicableRules returns every enabled rule that applies to a device per
// scope (ALL unconditionally, EXPLICIT via rule_devices, TAG via
// device.tags), for the device's project.
func (s *Store) ApplicableRules(ctx context.Context, projectID, deviceID int64, deviceTags []string) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ruleColumns+` FROM rules r
		WHERE r.project_id = $1 AND r.enabled = true
		AND (
			r.scope = 'ALL'
			OR (r.scope = 'EXPLICIT' AND EXISTS (
				SELECT 1 FROM rule_devices rd WHERE rd.rule_id = r.id AND rd.device_id = $2))
			OR (r.scope = 'TAG' AND r.tag = ANY($3::text[]))
		)
		ORDER BY r.id`, projectID, deviceID, deviceTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
