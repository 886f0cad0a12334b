package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// MsgNotAuthenticated is returned for every resolution failure
const MsgNotAuthenticated = "Not authorized to access this route"

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 2 * time.Minute
)

// Config holds identity provider settings
type Config struct {
	IssuerURL       string        `yaml:"issuer_url"`
	ClientID        string        `yaml:"client_id"`
	SkipIssuerCheck bool          `yaml:"skip_issuer_check"`
	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// UserStore is the persistence the resolver needs
type UserStore interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error)
	CreateUser(ctx context.Context, user *auth.User) error
}

// Resolver maps bearer tokens to users, creating users on first sight
type Resolver struct {
	verifier TokenVerifier
	store    UserStore
	claims   *expirable.LRU[string, *Claims]
	now      func() time.Time
}

// NewResolver creates a resolver. Zero cache settings use the defaults.
func NewResolver(verifier TokenVerifier, store UserStore, cfg Config) *Resolver {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		verifier: verifier,
		store:    store,
		claims:   expirable.NewLRU[string, *Claims](size, nil, ttl),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve verifies rawToken and returns the caller it identifies
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*auth.AuthContext, error) {
	ctx, span := observability.Tracer("inkwell/identity").Start(ctx, "identity.Resolve")
	defer span.End()

	if rawToken == "" {
		return nil, apperr.Unauthenticated(MsgNotAuthenticated)
	}

	tokenHash := auth.HashToken(rawToken)
	claims, cached := r.claims.Get(tokenHash)
	span.SetAttributes(attribute.Bool("identity.cache_hit", cached))
	if !cached {
		var err error
		claims, err = r.verifier.Verify(ctx, rawToken)
		if err != nil {
			span.SetStatus(codes.Error, "token rejected")
			observability.FromContext(ctx).WithError(err).Debug("Bearer token rejected")
			return nil, apperr.Wrap(apperr.KindUnauthenticated, MsgNotAuthenticated, err)
		}
		r.claims.Add(tokenHash, claims)
	}

	user, err := r.loadOrCreate(ctx, claims)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &auth.AuthContext{User: user, TokenHash: tokenHash}, nil
}

// Forget drops the cached claims for rawToken
func (r *Resolver) Forget(rawToken string) {
	r.claims.Remove(auth.HashToken(rawToken))
}

func (r *Resolver) loadOrCreate(ctx context.Context, claims *Claims) (*auth.User, error) {
	user, err := r.store.GetUserByExternalID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal("failed to load user", err)
	}

	email := claims.NormalizedEmail()
	user = &auth.User{
		ID:            uuid.NewString(),
		ExternalID:    claims.Subject,
		Name:          claims.DisplayName(),
		Email:         email,
		EmailVerified: email != "" && bool(claims.EmailVerified),
		Tier:          auth.TierBase,
		CreatedAt:     r.now(),
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// another request created the row first
			existing, getErr := r.store.GetUserByExternalID(ctx, claims.Subject)
			if getErr == nil {
				return existing, nil
			}
		}
		return nil, apperr.Internal("failed to create user", err)
	}

	observability.FromContext(ctx).
		WithField("user_id", user.ID).
		Info("Created user on first sign-in")
	return user, nil
}
