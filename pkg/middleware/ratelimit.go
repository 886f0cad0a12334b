package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/observability"
)

// MsgRateLimited is returned when a caller exceeds its request budget
const MsgRateLimited = "Too many requests. Please try again later."

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// GenerateRateLimitConfig limits content generation per user
func GenerateRateLimitConfig(perMinute int) *RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &RateLimitConfig{
		RequestsPerWindow: perMinute,
		WindowDuration:    time.Minute,
	}
}

// Limiter decides whether a keyed request may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
	Backend() string
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new in-memory rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = GenerateRateLimitConfig(0)
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Config returns the limiter's settings
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Backend names the limiter in metrics
func (rl *RateLimiter) Backend() string {
	return "memory"
}

// Allow checks if a request is allowed for the given key. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     rl.capacity(),
			lastUpdate: time.Now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)

	// Refill tokens based on elapsed time
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokens
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Cleanup removes idle buckets
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer observability.RecoverPanic(observability.FromContext(ctx), "rate limiter cleanup")
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated user, or per client
// IP when there is no user
type RateLimitMiddleware struct {
	limiter         Limiter
	metrics         *observability.Metrics
	fallbackEnabled bool
}

// NewRateLimitMiddleware creates a rate limit middleware over limiter
func NewRateLimitMiddleware(limiter Limiter, metrics *observability.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:         limiter,
		metrics:         metrics,
		fallbackEnabled: true, // fail open on backend errors
	}
}

// SetFallbackEnabled controls whether to fail open (true) or closed (false) on backend errors
func (m *RateLimitMiddleware) SetFallbackEnabled(enabled bool) {
	m.fallbackEnabled = enabled
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + getClientIP(r)
		if authCtx := GetAuthContext(r); authCtx != nil && authCtx.User != nil {
			key = "user:" + authCtx.User.ID
		}

		cfg := m.limiter.Config()
		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context()).
				WithError(err).
				WithField("backend", m.limiter.Backend()).
				Warn("Rate limiter unavailable")
			if !m.fallbackEnabled {
				httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
		if !allowed {
			m.metrics.RecordRateLimited(m.limiter.Backend())
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.WriteTooManyRequests(w, MsgRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
