package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/generate"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

const (
	MaxTitleLength = 100

	MsgTitleRequired   = "Please add a title"
	MsgTitleTooLong    = "Title cannot be more than 100 characters"
	MsgBodyRequired    = "Please add content"
	MsgInvalidType     = "Content type must be one of text, article, social or other"
	MsgContentNotFound = "Content not found"
	MsgPromptRequired  = "Please provide a prompt"
)

// Store is the persistence the content service needs
type Store interface {
	CreateContent(ctx context.Context, c *storage.Content) error
	GetContent(ctx context.Context, id string) (*storage.Content, error)
	ListContent(ctx context.Context, workspaceID string) ([]*storage.Content, error)
	UpdateContent(ctx context.Context, c *storage.Content) error
	DeleteContent(ctx context.Context, id string) error
}

// Generator produces text for a caller
type Generator interface {
	Generate(ctx context.Context, caller *auth.User, req generate.Request) (*generate.Result, error)
}

// CreateRequest is the body of POST /content
type CreateRequest struct {
	WorkspaceID string              `json:"workspace"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	Prompt      string              `json:"prompt"`
	ContentType storage.ContentType `json:"content_type"`
}

// UpdateRequest is the body of PUT /content/{id}. Nil fields are unchanged.
type UpdateRequest struct {
	Title       *string              `json:"title"`
	Body        *string              `json:"body"`
	Prompt      *string              `json:"prompt"`
	ContentType *storage.ContentType `json:"content_type"`
}

// GenerateRequest is the body of POST /content/generate
type GenerateRequest struct {
	WorkspaceID string `json:"workspace"`
	Prompt      string `json:"prompt"`
	MaxTokens   int    `json:"max_tokens"`
}

// GenerateResult is returned to the client after generation
type GenerateResult struct {
	Content   string `json:"content"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// Service implements content CRUD and generation
type Service struct {
	store     Store
	authz     *rbac.Engine
	quotas    *quota.Engine
	generator Generator
	now       func() time.Time
}

// NewService creates a content service
func NewService(store Store, authz *rbac.Engine, quotas *quota.Engine, generator Generator) *Service {
	return &Service{
		store:     store,
		authz:     authz,
		quotas:    quotas,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores new content in a workspace. Admin or Editor.
func (s *Service) Create(ctx context.Context, caller *auth.User, req CreateRequest) (*storage.Content, error) {
	if _, err := s.authz.Require(ctx, caller, req.WorkspaceID, rbac.Writers); err != nil {
		return nil, err
	}

	c := &storage.Content{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		Title:        strings.TrimSpace(req.Title),
		Body:         req.Body,
		Prompt:       req.Prompt,
		ContentType:  req.ContentType,
		CreatedBy:    caller.ID,
		LastEditedBy: caller.ID,
		CreatedAt:    s.now(),
	}
	if c.ContentType == "" {
		c.ContentType = storage.ContentText
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	if err := s.store.CreateContent(ctx, c); err != nil {
		return nil, apperr.Internal("failed to create content", err)
	}
	return c, nil
}

// List returns a workspace's content, newest first. Any active role.
func (s *Service) List(ctx context.Context, caller *auth.User, workspaceID string) ([]*storage.Content, error) {
	if _, err := s.authz.Require(ctx, caller, workspaceID, rbac.AnyRole); err != nil {
		return nil, err
	}
	items, err := s.store.ListContent(ctx, workspaceID)
	if err != nil {
		return nil, apperr.Internal("failed to list content", err)
	}
	if items == nil {
		items = []*storage.Content{}
	}
	return items, nil
}

// Get returns content to its creator or to any active member of its workspace
func (s *Service) Get(ctx context.Context, caller *auth.User, id string) (*storage.Content, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rbac.MatchesCaller(c.CreatedBy, caller) {
		return c, nil
	}
	if _, err := s.authz.Require(ctx, caller, c.WorkspaceID, rbac.AnyRole); err != nil {
		return nil, err
	}
	return c, nil
}

// Update edits content and records the editor. Admin or Editor on its workspace.
func (s *Service) Update(ctx context.Context, caller *auth.User, id string, req UpdateRequest) (*storage.Content, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.Require(ctx, caller, c.WorkspaceID, rbac.Writers); err != nil {
		return nil, err
	}

	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		c.Body = *req.Body
	}
	if req.Prompt != nil {
		c.Prompt = *req.Prompt
	}
	if req.ContentType != nil {
		c.ContentType = *req.ContentType
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	c.LastEditedBy = caller.ID
	c.UpdatedAt = s.now()
	if err := s.store.UpdateContent(ctx, c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgContentNotFound)
		}
		return nil, apperr.Internal("failed to update content", err)
	}
	return c, nil
}

// Delete removes content. Admin or Editor on its workspace.
func (s *Service) Delete(ctx context.Context, caller *auth.User, id string) error {
	if caller == nil {
		return apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authz.Require(ctx, caller, c.WorkspaceID, rbac.Writers); err != nil {
		return err
	}
	if err := s.store.DeleteContent(ctx, c.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(MsgContentNotFound)
		}
		return apperr.Internal("failed to delete content", err)
	}
	return nil
}

// Generate produces text for a prompt. Admin or Editor on the workspace.
// The requested budget is clamped to the caller's tier, never rejected.
func (s *Service) Generate(ctx context.Context, caller *auth.User, req GenerateRequest) (*GenerateResult, error) {
	if _, err := s.authz.Require(ctx, caller, req.WorkspaceID, rbac.Writers); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperr.Validation(MsgPromptRequired)
	}

	d, err := s.quotas.Check(ctx, caller, quota.Request{
		Action:          quota.ActionGenerateContent,
		WorkspaceID:     req.WorkspaceID,
		RequestedTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.generator.Generate(ctx, caller, generate.Request{Prompt: prompt, MaxTokens: d.Tokens})
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Content: res.Content, Prompt: prompt, MaxTokens: d.Tokens}, nil
}

func (s *Service) load(ctx context.Context, id string) (*storage.Content, error) {
	c, err := s.store.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgContentNotFound)
		}
		return nil, apperr.Internal("failed to load content", err)
	}
	return c, nil
}

func validate(c *storage.Content) error {
	if err := httputil.Validate(
		httputil.Required(c.Title, MsgTitleRequired),
		httputil.MaxLength(c.Title, MaxTitleLength, MsgTitleTooLong),
		httputil.Required(strings.TrimSpace(c.Body), MsgBodyRequired),
	); err != nil {
		return err
	}
	if !c.ContentType.Valid() {
		return apperr.Validation(MsgInvalidType)
	}
	return nil
}
