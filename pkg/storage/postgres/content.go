package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/inkwell/pkg/storage"
)

const contentColumns = `id, workspace_id, title, body, prompt, content_type, created_by, last_edited_by, created_at, updated_at`

func scanContent(row scanner) (*storage.Content, error) {
	var c storage.Content
	var contentType string
	var lastEditedBy sql.NullString
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Title, &c.Body, &c.Prompt, &contentType,
		&c.CreatedBy, &lastEditedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ContentType = storage.ContentType(contentType)
	c.LastEditedBy = lastEditedBy.String
	return &c, nil
}

// CreateContent inserts a content record
func (s *Store) CreateContent(ctx context.Context, c *storage.Content) error {
	c.CreatedAt = utc(c.CreatedAt)
	c.UpdatedAt = c.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (id, workspace_id, title, body, prompt, content_type, created_by, last_edited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.WorkspaceID, c.Title, c.Body, c.Prompt, string(c.ContentType), c.CreatedBy,
		nullString(c.LastEditedBy), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return writeErr("create content", err)
	}
	return nil
}

// GetContent retrieves content by id
func (s *Store) GetContent(ctx context.Context, id string) (*storage.Content, error) {
	c, err := scanContent(s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get content", err)
	}
	return c, nil
}

// ListContent returns the workspace's content, newest first
func (s *Store) ListContent(ctx context.Context, workspaceID string) ([]*storage.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var result []*storage.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// UpdateContent persists the editable fields
func (s *Store) UpdateContent(ctx context.Context, c *storage.Content) error {
	c.UpdatedAt = utc(c.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET title = $1, body = $2, prompt = $3, content_type = $4, last_edited_by = $5, updated_at = $6
		WHERE id = $7
	`, c.Title, c.Body, c.Prompt, string(c.ContentType), nullString(c.LastEditedBy), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update content: %w", err)
	}
	return expectRow("update content", result)
}

// DeleteContent removes content by id
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return expectRow("delete content", result)
}
