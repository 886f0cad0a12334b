package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrMissingSubject is returned when a verified token carries no subject
var ErrMissingSubject = errors.New("identity: token has no subject")

// TokenVerifier turns a raw bearer token into claims
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// OIDCVerifier verifies ID tokens and falls back to UserInfo for access tokens
type OIDCVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for clientID
func NewOIDCVerifier(ctx context.Context, cfg Config) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.ClientID == "",
		SkipIssuerCheck:   cfg.SkipIssuerCheck,
	})
	return &OIDCVerifier{provider: provider, verifier: verifier}, nil
}

// NewIDTokenVerifier wraps an existing verifier without a UserInfo fallback
func NewIDTokenVerifier(verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: verifier}
}

// Verify implements TokenVerifier
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, idErr := v.verifier.Verify(ctx, rawToken)
	if idErr == nil {
		var claims Claims
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
		}
		if claims.Subject == "" {
			claims.Subject = idToken.Subject
		}
		return checkSubject(&claims)
	}
	if v.provider == nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", idErr)
	}

	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: rawToken}))
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", errors.Join(idErr, err))
	}
	var claims Claims
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo claims: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = info.Subject
	}
	if claims.Email == "" {
		claims.Email = info.Email
	}
	return checkSubject(&claims)
}

func checkSubject(c *Claims) (*Claims, error) {
	if c.Subject == "" {
		return nil, ErrMissingSubject
	}
	return c, nil
}
