package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

const workspaceColumns = `id, name, description, owner_id, created_at, updated_at`

func scanWorkspace(row scanner) (*storage.Workspace, error) {
	var ws storage.Workspace
	if err := row.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return nil, err
	}
	return &ws, nil
}

// CreateWorkspace inserts the workspace and its owner's membership in one transaction
func (s *Store) CreateWorkspace(ctx context.Context, ws *storage.Workspace, owner *storage.Membership) error {
	ws.CreatedAt = utc(ws.CreatedAt)
	ws.UpdatedAt = ws.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ws.ID, ws.Name, ws.Description, ws.OwnerID, ws.CreatedAt, ws.UpdatedAt); err != nil {
		return writeErr("create workspace", err)
	}

	if owner != nil {
		owner.WorkspaceID = ws.ID
		if err := insertMembership(ctx, tx, owner); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by id
func (s *Store) GetWorkspace(ctx context.Context, id string) (*storage.Workspace, error) {
	ws, err := scanWorkspace(s.db.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get workspace", err)
	}
	return ws, nil
}

// UpdateWorkspace persists name and description
func (s *Store) UpdateWorkspace(ctx context.Context, ws *storage.Workspace) error {
	ws.UpdatedAt = utc(ws.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name = $1, description = $2, updated_at = $3 WHERE id = $4
	`, ws.Name, ws.Description, ws.UpdatedAt, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	return expectRow("update workspace", result)
}

// DeleteWorkspace removes the workspace, its contents and its memberships
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contents WHERE workspace_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete workspace contents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE workspace_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete workspace memberships: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if err := expectRow("delete workspace", result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workspace deletion: %w", err)
	}
	return nil
}

// ListOwnedWorkspaces returns workspaces owned by ownerID, newest first
func (s *Store) ListOwnedWorkspaces(ctx context.Context, ownerID string) ([]*storage.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned workspaces: %w", err)
	}
	defer rows.Close()

	var result []*storage.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

// ListMemberWorkspaces returns workspaces where userID holds an accepted membership
func (s *Store) ListMemberWorkspaces(ctx context.Context, userID string) ([]*storage.WorkspaceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.description, w.owner_id, w.created_at, w.updated_at, m.role
		FROM memberships m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1 AND m.invite_accepted = TRUE
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member workspaces: %w", err)
	}
	defer rows.Close()

	var result []*storage.WorkspaceSummary
	for rows.Next() {
		var summary storage.WorkspaceSummary
		var role string
		ws := &summary.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt, &role); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		summary.Role = auth.Role(role)
		result = append(result, &summary)
	}
	return result, rows.Err()
}

// CountOwnedWorkspaces counts workspaces owned by ownerID
func (s *Store) CountOwnedWorkspaces(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workspaces WHERE owner_id = $1`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count workspaces: %w", err)
	}
	return count, nil
}
