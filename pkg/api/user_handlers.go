package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/users"
)

// UserHandlers handles user profile and administration requests
type UserHandlers struct {
	service *users.Service
}

// NewUserHandlers creates a new UserHandlers
func NewUserHandlers(service *users.Service) *UserHandlers {
	return &UserHandlers{service: service}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.GetMe).Methods("GET")
	router.HandleFunc("/users/subscription", h.UpdateSubscription).Methods("PUT")

	router.Handle("/users", rbac.RequireSystemAdmin(http.HandlerFunc(h.ListUsers))).Methods("GET")
	router.Handle("/users/{id}/admin", rbac.RequireSystemAdmin(http.HandlerFunc(h.MakeAdmin))).Methods("PUT")
}

// GetMe returns the caller's user record
func (h *UserHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.Caller(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateSubscription changes the caller's tier
func (h *UserHandlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req users.SubscriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateSubscription(r.Context(), middleware.Caller(r), req.Tier)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// ListUsers lists every user
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), middleware.Caller(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, list, len(list))
}

// MakeAdmin grants system administrator rights to a user
func (h *UserHandlers) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.MakeAdmin(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}
