package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

type Device struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// dedupeTags returns a sorted set of non-empty tags.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	var tagsJSON []byte
	if err := row.Scan(&d.ID, &d.ProjectID, &d.ExternalID, &d.Name, &tagsJSON, &d.CreatedAt); err != nil {
		return Device{}, err
	}
	_ = json.Unmarshal(tagsJSON, &d.Tags)
	return d, nil
}

func (s *Store) CreateDevice(ctx context.Context, projectID int64, externalID, name string, tags []string) (Device, error) {
	tagsJSON, err := json.Marshal(dedupeTags(tags))
	if err != nil {
		return Device{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO devices (project_id, external_id, name, tags)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, project_id, external_id, name, tags, created_at`,
		projectID, externalID, name, tagsJSON,
	)
	d, err := scanDevice(row)
	if isUniqueViolation(err) {
		return Device{}, ErrConflict
	}
	return d, err
}

func (s *Store) GetDevice(ctx context.Context, id int64) (Device, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, external_id, name, tags, created_at FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err == pgx.ErrNoRows {
		return Device{}, ErrNotFound
	}
	return d, err
}

func (s *Store) GetDeviceByExternalID(ctx context.Context, projectID int64, externalID string) (Device, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, external_id, name, tags, created_at
		FROM devices WHERE project_id = $1 AND external_id = $2`, projectID, externalID)
	d, err := scanDevice(row)
	if err == pgx.ErrNoRows {
		return Device{}, ErrNotFound
	}
	return d, err
}

func (s *Store) ListDevices(ctx context.Context, projectID int64) ([]Device, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, external_id, name, tags, created_at
		FROM devices WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTags overwrites the device's tag set.
func (s *Store) ReplaceTags(ctx context.Context, id int64, tags []string) ([]string, error) {
	final := dedupeTags(tags)
	return s.updateTags(ctx, id, final)
}

// AddTags merges the given tags into the device's existing set.
func (s *Store) AddTags(ctx context.Context, id int64, tags []string) ([]string, error) {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.updateTags(ctx, id, dedupeTags(append(d.Tags, tags...)))
}

// RemoveTags removes the given tags from the device's existing set.
func (s *Store) RemoveTags(ctx context.Context, id int64, tags []string) ([]string, error) {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	remove := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		remove[t] = struct{}{}
	}
	kept := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		if _, ok := remove[t]; !ok {
			kept = append(kept, t)
		}
	}
	return s.updateTags(ctx, id, dedupeTags(kept))
}

func (s *Store) updateTags(ctx context.Context, id int64, tags []string) ([]string, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	ct, err := s.pool.Exec(ctx, `UPDATE devices SET tags = $1::jsonb WHERE id = $2`, tagsJSON, id)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return tags, nil
}
