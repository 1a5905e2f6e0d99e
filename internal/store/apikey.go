package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ridgeline-io/ridgeline/internal/authkey"
)

type APIKey struct {
	ID         int64      `json:"id"`
	ProjectID  int64      `json:"project_id"`
	Prefix     string     `json:"prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// CreateAPIKey generates a new key for projectID and persists its hash,
// returning the raw "<prefix>.<secret>" value to show the caller once.
func (s *Store) CreateAPIKey(ctx context.Context, projectID int64) (raw string, key APIKey, err error) {
	raw, prefix, hashedSecret, err := authkey.Generate()
	if err != nil {
		return "", APIKey{}, err
	}

	key.ProjectID = projectID
	key.Prefix = prefix
	err = s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (project_id, prefix, hashed_secret)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, prefix, created_at`,
		projectID, prefix, hashedSecret,
	).Scan(&key.ID, &key.ProjectID, &key.Prefix, &key.CreatedAt)
	if isUniqueViolation(err) {
		return "", APIKey{}, ErrConflict
	}
	if err != nil {
		return "", APIKey{}, err
	}
	return raw, key, nil
}

// LookupAPIKeyByPrefix implements authkey.Lookuper.
func (s *Store) LookupAPIKeyByPrefix(ctx context.Context, prefix string) (authkey.Record, bool, error) {
	var rec authkey.Record
	var revokedAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT project_id, hashed_secret, revoked_at
		FROM api_keys WHERE prefix = $1`, prefix,
	).Scan(&rec.ProjectID, &rec.HashedSecret, &revokedAt)
	if err == pgx.ErrNoRows {
		return authkey.Record{}, false, nil
	}
	if err != nil {
		return authkey.Record{}, false, err
	}
	rec.RevokedAt = revokedAt
	return rec, true, nil
}

// TouchLastUsed updates last_used_at for the key identified by prefix;
// failures are non-fatal to the caller's request and may be ignored.
func (s *Store) TouchLastUsed(ctx context.Context, prefix string) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE prefix = $1`, prefix)
	return err
}
