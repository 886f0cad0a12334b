// Package apikeys manages the provider API keys users register for content
// generation. Stored keys are never returned in full.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/generate"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

const (
	MsgMissingFields      = "Please provide all required fields"
	MsgUnsupportedService = "Only the openai service is supported"
	MsgKeyNotFound        = "API key not found"
	MsgCannotDelete       = "Not authorized to delete this API key"
	MsgCannotUpdate       = "Not authorized to update this API key"
	MsgNameRequired       = "Please provide a name for your API key"
	MsgKeyRequired        = "Please provide an API key to verify"
	MsgKeyValid           = "API key is valid"
	MsgKeyInvalid         = "API key is invalid or has insufficient permissions"

	GeneratedKeyNote = "Generated keys are not stored. Create provider keys in the provider dashboard and add them here."
)

// Store is the persistence the api key service needs
type Store interface {
	CreateAPIKey(ctx context.Context, k *storage.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*storage.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*storage.APIKey, error)
	SetAPIKeyActive(ctx context.Context, id string, active bool, at time.Time) error
	DeleteAPIKey(ctx context.Context, id string) error
}

// Verifier checks a raw key against the provider
type Verifier interface {
	VerifyKey(ctx context.Context, key string) (bool, error)
}

// AddRequest is the body of POST /api-keys
type AddRequest struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Service string `json:"service"`
}

// GeneratedKey is returned by POST /api-keys/generate
type GeneratedKey struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Note string `json:"note"`
}

// Verification is returned by POST /api-keys/verify
type Verification struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Service implements per-user API key management
type Service struct {
	store    Store
	verifier Verifier
	now      func() time.Time
}

// NewService creates an api key service. A nil verifier reports every
// non-empty key as valid.
func NewService(store Store, verifier Verifier) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns caller's keys, masked
func (s *Service) List(ctx context.Context, caller *auth.User) ([]*storage.APIKey, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	keys, err := s.store.ListAPIKeys(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list api keys", err)
	}
	result := make([]*storage.APIKey, 0, len(keys))
	for _, k := range keys {
		result = append(result, masked(k))
	}
	return result, nil
}

// Add registers a new active key for caller. Names are unique per user.
func (s *Service) Add(ctx context.Context, caller *auth.User, req AddRequest) (*storage.APIKey, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	name := strings.TrimSpace(req.Name)
	key := strings.TrimSpace(req.Key)
	service := strings.ToLower(strings.TrimSpace(req.Service))
	if err := httputil.Validate(
		httputil.Required(name, MsgMissingFields),
		httputil.Required(key, MsgMissingFields),
		httputil.Required(service, MsgMissingFields),
	); err != nil {
		return nil, err
	}
	if service != generate.ServiceOpenAI {
		return nil, apperr.Validation(MsgUnsupportedService)
	}

	k := &storage.APIKey{
		ID:        uuid.NewString(),
		UserID:    caller.ID,
		Name:      name,
		Key:       key,
		Service:   service,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateAPIKey(ctx, k); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict(fmt.Sprintf("You already have an API key named %q", name))
		}
		return nil, apperr.Internal("failed to create api key", err)
	}
	return masked(k), nil
}

// Delete removes one of caller's keys
func (s *Service) Delete(ctx context.Context, caller *auth.User, id string) error {
	k, err := s.owned(ctx, caller, id, MsgCannotDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, k.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(MsgKeyNotFound)
		}
		return apperr.Internal("failed to delete api key", err)
	}
	return nil
}

// Toggle flips whether one of caller's keys is used for generation
func (s *Service) Toggle(ctx context.Context, caller *auth.User, id string) (*storage.APIKey, error) {
	k, err := s.owned(ctx, caller, id, MsgCannotUpdate)
	if err != nil {
		return nil, err
	}
	k.IsActive = !k.IsActive
	k.UpdatedAt = s.now()
	if err := s.store.SetAPIKeyActive(ctx, k.ID, k.IsActive, k.UpdatedAt); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgKeyNotFound)
		}
		return nil, apperr.Internal("failed to update api key", err)
	}
	return masked(k), nil
}

// Generate returns a random key. Nothing is stored.
func (s *Service) Generate(name string) (*GeneratedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(MsgNameRequired)
	}
	key, err := auth.GenerateKey()
	if err != nil {
		return nil, apperr.Internal("failed to generate api key", err)
	}
	return &GeneratedKey{Name: name, Key: key, Note: GeneratedKeyNote}, nil
}

// Verify reports whether key is accepted by the provider. Provider failures
// are reported as an invalid key rather than an error.
func (s *Service) Verify(ctx context.Context, key string) (*Verification, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.Validation(MsgKeyRequired)
	}
	if s.verifier == nil {
		return &Verification{Valid: true, Message: MsgKeyValid}, nil
	}

	ok, err := s.verifier.VerifyKey(ctx, key)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("API key verification failed")
		ok = false
	}
	if !ok {
		return &Verification{Valid: false, Message: MsgKeyInvalid}, nil
	}
	return &Verification{Valid: true, Message: MsgKeyValid}, nil
}

func (s *Service) owned(ctx context.Context, caller *auth.User, id, denied string) (*storage.APIKey, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated(rbac.MsgNotAuthenticated)
	}
	k, err := s.store.GetAPIKey(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(MsgKeyNotFound)
		}
		return nil, apperr.Internal("failed to load api key", err)
	}
	if err := rbac.RequireOwner(k.UserID, caller, denied); err != nil {
		return nil, err
	}
	return k, nil
}

func masked(k *storage.APIKey) *storage.APIKey {
	out := *k
	out.Key = auth.MaskKey(k.Key)
	return &out
}
