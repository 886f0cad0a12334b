package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// The schema sticks to the SQL shared by PostgreSQL and SQLite so the same
// migrations serve production and tests.

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(36) PRIMARY KEY,
					external_id VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(320) NOT NULL,
					email_verified BOOLEAN NOT NULL DEFAULT FALSE,
					subscription_tier VARCHAR(16) NOT NULL DEFAULT 'base',
					is_system_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(50) NOT NULL,
					description VARCHAR(500) NOT NULL DEFAULT '',
					owner_id VARCHAR(36) NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_workspaces_owner_id ON workspaces(owner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id VARCHAR(36) PRIMARY KEY,
					workspace_id VARCHAR(36) NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id VARCHAR(36) REFERENCES users(id) ON DELETE CASCADE,
					invite_email VARCHAR(320) NOT NULL DEFAULT '',
					role VARCHAR(16) NOT NULL DEFAULT 'Viewer',
					invite_accepted BOOLEAN NOT NULL DEFAULT FALSE,
					invited_by VARCHAR(36) REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(workspace_id, user_id),
					CHECK (role IN ('Admin', 'Editor', 'Viewer')),
					CHECK (invite_accepted = FALSE OR user_id IS NOT NULL)
				);

				CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX IF NOT EXISTS idx_memberships_invite_email ON memberships(workspace_id, invite_email);
			`,
		},
		{
			Version:     4,
			Description: "Create contents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contents (
					id VARCHAR(36) PRIMARY KEY,
					workspace_id VARCHAR(36) NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					title VARCHAR(100) NOT NULL,
					body TEXT NOT NULL,
					prompt TEXT NOT NULL DEFAULT '',
					content_type VARCHAR(16) NOT NULL DEFAULT 'text',
					created_by VARCHAR(36) NOT NULL REFERENCES users(id),
					last_edited_by VARCHAR(36) REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_contents_workspace_id ON contents(workspace_id, created_at);
			`,
		},
		{
			Version:     5,
			Description: "Create api_keys table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_keys (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					api_key TEXT NOT NULL,
					service VARCHAR(32) NOT NULL DEFAULT 'openai',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_used_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, name)
				);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	logger := observability.FromContext(ctx)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)
		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
