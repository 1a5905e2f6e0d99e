package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Org struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateOrg(ctx context.Context, name string) (Org, error) {
	var o Org
	o.Name = name
	err := s.pool.QueryRow(ctx, `
		INSERT INTO orgs (name) VALUES ($1)
		RETURNING id, name, created_at`, name,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if isUniqueViolation(err) {
		return Org{}, ErrConflict
	}
	return o, err
}

type Project struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateProject(ctx context.Context, orgID int64, name string) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (org_id, name) VALUES ($1, $2)
		RETURNING id, org_id, name, created_at`, orgID, name,
	).Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return Project{}, ErrNotFound
	}
	return p, err
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, created_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return Project{}, ErrNotFound
	}
	return p, err
}
