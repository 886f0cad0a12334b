package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/inkwell/pkg/apikeys"
	"github.com/platinummonkey/inkwell/pkg/content"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/teams"
	"github.com/platinummonkey/inkwell/pkg/users"
	"github.com/platinummonkey/inkwell/pkg/workspaces"
)

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is unset
const DefaultMaxBodyBytes = 1 << 20

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Services are the domain services served over HTTP
type Services struct {
	Workspaces *workspaces.Service
	Teams      *teams.Service
	Content    *content.Service
	APIKeys    *apikeys.Service
	Users      *users.Service
}

// Options configure the router
type Options struct {
	Resolver middleware.Resolver
	// GenerateLimiter throttles POST /content/generate per user. Nil disables it.
	GenerateLimiter middleware.Limiter
	Logger          *observability.Logger
	Metrics         *observability.Metrics
	CORSOrigins     []string
	MaxBodyBytes    int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options

	workspaceHandlers *WorkspaceHandlers
	teamHandlers      *TeamHandlers
	contentHandlers   *ContentHandlers
	apiKeyHandlers    *APIKeyHandlers
	userHandlers      *UserHandlers
}

// NewServer creates a new API server
func NewServer(services Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	var limit func(http.Handler) http.Handler
	if opts.GenerateLimiter != nil {
		limit = middleware.NewRateLimitMiddleware(opts.GenerateLimiter, opts.Metrics).Handler
	}

	s := &Server{
		router:            mux.NewRouter(),
		opts:              opts,
		workspaceHandlers: NewWorkspaceHandlers(services.Workspaces),
		teamHandlers:      NewTeamHandlers(services.Teams),
		contentHandlers:   NewContentHandlers(services.Content, limit),
		apiKeyHandlers:    NewAPIKeyHandlers(services.APIKeys),
		userHandlers:      NewUserHandlers(services.Users),
	}
	s.setupRoutes()

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.CORSOrigins),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "inkwell-api")
	return s
}

// setupRoutes configures all the API routes. Every route requires an
// authenticated caller.
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	protected := s.router.NewRoute().Subrouter()
	if s.opts.Metrics != nil {
		// router middleware so the matched route template is known
		protected.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	protected.Use(middleware.NewAuthMiddleware(s.opts.Resolver).Handler)

	for _, registrar := range []RouteRegistrar{
		s.workspaceHandlers,
		s.teamHandlers,
		s.contentHandlers,
		s.apiKeyHandlers,
		s.userHandlers,
	} {
		registrar.RegisterRoutes(protected)
	}
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}
