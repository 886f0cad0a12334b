// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware reads the bearer token, resolves it through an identity
// Resolver and stores the *auth.AuthContext under contextkeys.AuthKey.
// Handlers read the caller back with Caller(r).
//
//	authMW := middleware.NewAuthMiddleware(resolver)
//	router.Use(authMW.Handler)
//
// # Rate Limiting
//
// RateLimitMiddleware keys requests by user id, or by client IP for
// anonymous requests, and delegates to a Limiter:
//
//	limiter := middleware.NewRateLimiter(middleware.GenerateRateLimitConfig(20))
//	rl := middleware.NewRateLimitMiddleware(limiter, metrics)
//
// RateLimiter is an in-process token bucket. DistributedRateLimiter keeps a
// fixed-window counter in Redis so several API instances share one budget.
// Backend errors fail open unless SetFallbackEnabled(false) is called.
package middleware
