package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/workspaces"
)

// WorkspaceHandlers handles workspace-related HTTP requests
type WorkspaceHandlers struct {
	service *workspaces.Service
}

// NewWorkspaceHandlers creates a new WorkspaceHandlers
func NewWorkspaceHandlers(service *workspaces.Service) *WorkspaceHandlers {
	return &WorkspaceHandlers{service: service}
}

// RegisterRoutes registers workspace routes
func (h *WorkspaceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.CreateWorkspace).Methods("POST")
	router.HandleFunc("/workspaces", h.ListWorkspaces).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.GetWorkspace).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.UpdateWorkspace).Methods("PUT")
	router.HandleFunc("/workspaces/{id}", h.DeleteWorkspace).Methods("DELETE")
}

// CreateWorkspace creates a workspace owned by the caller
func (h *WorkspaceHandlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaces.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.service.Create(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, ws)
}

// ListWorkspaces lists the workspaces the caller owns or belongs to
func (h *WorkspaceHandlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), middleware.Caller(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, list, len(list))
}

// GetWorkspace retrieves a workspace by ID
func (h *WorkspaceHandlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	ws, err := h.service.Get(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}

// UpdateWorkspace renames or re-describes a workspace
func (h *WorkspaceHandlers) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req workspaces.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.service.Update(r.Context(), middleware.Caller(r), id, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}

// DeleteWorkspace deletes a workspace with its memberships and content
func (h *WorkspaceHandlers) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.Caller(r), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, struct{}{})
}
