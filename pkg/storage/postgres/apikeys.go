package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/inkwell/pkg/storage"
)

const apiKeyColumns = `id, user_id, name, api_key, service, is_active, last_used_at, created_at, updated_at`

func scanAPIKey(row scanner) (*storage.APIKey, error) {
	var k storage.APIKey
	var lastUsed sql.NullTime
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Key, &k.Service, &k.IsActive, &lastUsed, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	return &k, nil
}

// CreateAPIKey inserts a key. A second key with the same name for the same
// user yields storage.ErrDuplicate.
func (s *Store) CreateAPIKey(ctx context.Context, k *storage.APIKey) error {
	k.CreatedAt = utc(k.CreatedAt)
	k.UpdatedAt = k.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, api_key, service, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, k.ID, k.UserID, k.Name, k.Key, k.Service, k.IsActive, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		return writeErr("create api key", err)
	}
	return nil
}

// GetAPIKey retrieves a key by id
func (s *Store) GetAPIKey(ctx context.Context, id string) (*storage.APIKey, error) {
	k, err := scanAPIKey(s.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get api key", err)
	}
	return k, nil
}

// ListAPIKeys returns a user's keys, newest first
func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*storage.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var result []*storage.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// GetActiveAPIKey returns the newest active key userID holds for service
func (s *Store) GetActiveAPIKey(ctx context.Context, userID, service string) (*storage.APIKey, error) {
	k, err := scanAPIKey(s.db.QueryRowContext(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE user_id = $1 AND service = $2 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, service))
	if err != nil {
		return nil, readErr("get active api key", err)
	}
	return k, nil
}

// SetAPIKeyActive enables or disables a key
func (s *Store) SetAPIKeyActive(ctx context.Context, id string, active bool, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = $1, updated_at = $2 WHERE id = $3`, active, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	return expectRow("update api key", result)
}

// TouchAPIKey records when a key was last used
func (s *Store) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return expectRow("touch api key", result)
}

// DeleteAPIKey removes a key by id
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return expectRow("delete api key", result)
}
