package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/auth"
)

const userColumns = `id, external_id, name, email, email_verified, subscription_tier, is_system_admin, created_at`

func scanUser(row scanner) (*auth.User, error) {
	var u auth.User
	var tier string
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.EmailVerified, &tier, &u.IsSystemAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Tier = auth.Tier(tier)
	return &u, nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get user", err)
	}
	return u, nil
}

// GetUserByExternalID retrieves a user by identity provider subject
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if err != nil {
		return nil, readErr("get user by external id", err)
	}
	return u, nil
}

// GetUserByEmail retrieves the oldest user with the given normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY created_at LIMIT 1`,
		auth.NormalizeEmail(email)))
	if err != nil {
		return nil, readErr("get user by email", err)
	}
	return u, nil
}

// CreateUser inserts a user. Duplicate external ids yield storage.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	user.CreatedAt = utc(user.CreatedAt)
	if !user.Tier.Valid() {
		user.Tier = auth.TierBase
	}
	user.Email = auth.NormalizeEmail(user.Email)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, name, email, email_verified, subscription_tier, is_system_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.ExternalID, user.Name, user.Email, user.EmailVerified, string(user.Tier), user.IsSystemAdmin, user.CreatedAt)
	if err != nil {
		return writeErr("create user", err)
	}
	return nil
}

// UpdateUserTier changes a user's subscription tier
func (s *Store) UpdateUserTier(ctx context.Context, id string, tier auth.Tier) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_tier = $1 WHERE id = $2`, string(tier), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription tier: %w", err)
	}
	return expectRow("update subscription tier", result)
}

// SetSystemAdmin grants or revokes the system-admin flag
func (s *Store) SetSystemAdmin(ctx context.Context, id string, isAdmin bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_system_admin = $1 WHERE id = $2`, isAdmin, id)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	return expectRow("update admin flag", result)
}

// ListUsers returns every user, oldest first
func (s *Store) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
