package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

const membershipColumns = `m.id, m.workspace_id, m.user_id, m.invite_email, m.role, m.invite_accepted, m.invited_by, m.created_at, m.updated_at`

func scanMembership(row scanner) (*storage.Membership, error) {
	var m storage.Membership
	var userID, invitedBy sql.NullString
	var role string
	if err := row.Scan(&m.ID, &m.WorkspaceID, &userID, &m.InviteEmail, &role, &m.InviteAccepted, &invitedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.UserID = stringPtr(userID)
	m.InvitedBy = invitedBy.String
	m.Role = auth.Role(role)
	return &m, nil
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMembership(ctx context.Context, db execer, m *storage.Membership) error {
	m.CreatedAt = utc(m.CreatedAt)
	m.UpdatedAt = m.CreatedAt
	m.InviteEmail = auth.NormalizeEmail(m.InviteEmail)

	_, err := db.ExecContext(ctx, `
		INSERT INTO memberships (id, workspace_id, user_id, invite_email, role, invite_accepted, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.WorkspaceID, nullStringPtr(m.UserID), m.InviteEmail, string(m.Role), m.InviteAccepted,
		nullString(m.InvitedBy), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return writeErr("create membership", err)
	}
	return nil
}

// CreateMembership inserts a membership. A second row for the same
// (workspace, user) pair yields storage.ErrDuplicate.
func (s *Store) CreateMembership(ctx context.Context, m *storage.Membership) error {
	return insertMembership(ctx, s.db, m)
}

// GetMembership retrieves a membership by id
func (s *Store) GetMembership(ctx context.Context, id string) (*storage.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships m WHERE m.id = $1`, id))
	if err != nil {
		return nil, readErr("get membership", err)
	}
	return m, nil
}

// FindMembership retrieves the membership binding userID to workspaceID
func (s *Store) FindMembership(ctx context.Context, workspaceID, userID string) (*storage.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships m WHERE m.workspace_id = $1 AND m.user_id = $2`,
		workspaceID, userID))
	if err != nil {
		return nil, readErr("find membership", err)
	}
	return m, nil
}

// FindPendingInvite retrieves an unaccepted invitation for email in workspaceID
func (s *Store) FindPendingInvite(ctx context.Context, workspaceID, email string) (*storage.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM memberships m
		WHERE m.workspace_id = $1 AND m.invite_email = $2 AND m.invite_accepted = FALSE
		ORDER BY m.created_at
		LIMIT 1
	`, workspaceID, auth.NormalizeEmail(email)))
	if err != nil {
		return nil, readErr("find pending invite", err)
	}
	return m, nil
}

// GetMemberDetail retrieves a membership with user, inviter and workspace names.
// The workspace name is empty when the workspace no longer exists.
func (s *Store) GetMemberDetail(ctx context.Context, id string) (*storage.MemberDetail, error) {
	d, err := scanMemberDetail(s.db.QueryRowContext(ctx, memberDetailQuery+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, readErr("get membership detail", err)
	}
	return d, nil
}

const memberDetailQuery = `
	SELECT ` + membershipColumns + `,
		COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(i.name, ''), COALESCE(w.name, '')
	FROM memberships m
	LEFT JOIN users u ON u.id = m.user_id
	LEFT JOIN users i ON i.id = m.invited_by
	LEFT JOIN workspaces w ON w.id = m.workspace_id`

func scanMemberDetail(row scanner) (*storage.MemberDetail, error) {
	var d storage.MemberDetail
	var userID, invitedBy sql.NullString
	var role string
	m := &d.Membership
	if err := row.Scan(&m.ID, &m.WorkspaceID, &userID, &m.InviteEmail, &role, &m.InviteAccepted, &invitedBy,
		&m.CreatedAt, &m.UpdatedAt, &d.UserName, &d.UserEmail, &d.InviterName, &d.WorkspaceName); err != nil {
		return nil, err
	}
	m.UserID = stringPtr(userID)
	m.InvitedBy = invitedBy.String
	m.Role = auth.Role(role)
	return &d, nil
}

// ListMemberships returns every membership of workspaceID, pending and accepted
func (s *Store) ListMemberships(ctx context.Context, workspaceID string) ([]*storage.MemberDetail, error) {
	rows, err := s.db.QueryContext(ctx, memberDetailQuery+`
		WHERE m.workspace_id = $1
		ORDER BY m.created_at
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var result []*storage.MemberDetail
	for rows.Next() {
		d, err := scanMemberDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// CountMemberships counts pending and accepted memberships of workspaceID,
// skipping rows bound to excludeUserID
func (s *Store) CountMemberships(ctx context.Context, workspaceID, excludeUserID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE workspace_id = $1 AND (user_id IS NULL OR user_id <> $2)
	`, workspaceID, excludeUserID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return count, nil
}

// UpdateMembershipRole changes the role and refreshes updated_at
func (s *Store) UpdateMembershipRole(ctx context.Context, id string, role auth.Role, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET role = $1, updated_at = $2 WHERE id = $3`, string(role), utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	return expectRow("update membership role", result)
}

// AcceptMembership binds userID and marks the membership accepted
func (s *Store) AcceptMembership(ctx context.Context, id, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE memberships SET user_id = $1, invite_accepted = TRUE, updated_at = $2 WHERE id = $3
	`, userID, utc(at), id)
	if err != nil {
		return writeErr("accept membership", err)
	}
	return expectRow("accept membership", result)
}

// TouchMembership refreshes updated_at
func (s *Store) TouchMembership(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET updated_at = $1 WHERE id = $2`, utc(at), id)
	if err != nil {
		return fmt.Errorf("failed to touch membership: %w", err)
	}
	return expectRow("touch membership", result)
}

// DeleteMembership removes a membership and reports whether it existed
func (s *Store) DeleteMembership(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	return n > 0, nil
}

// DeleteStalePendingInvites removes unaccepted invitations last touched before the cutoff
func (s *Store) DeleteStalePendingInvites(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE invite_accepted = FALSE AND updated_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale invitations: %w", err)
	}
	return n, nil
}
