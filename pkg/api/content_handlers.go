package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/content"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
)

// ContentHandlers handles content CRUD and generation requests
type ContentHandlers struct {
	service *content.Service
	limit   func(http.Handler) http.Handler
}

// NewContentHandlers creates a new ContentHandlers. limit, when non-nil,
// wraps the generation endpoint.
func NewContentHandlers(service *content.Service, limit func(http.Handler) http.Handler) *ContentHandlers {
	return &ContentHandlers{service: service, limit: limit}
}

// RegisterRoutes registers content routes
func (h *ContentHandlers) RegisterRoutes(router *mux.Router) {
	var generate http.Handler = http.HandlerFunc(h.GenerateContent)
	if h.limit != nil {
		generate = h.limit(generate)
	}

	router.HandleFunc("/content", h.CreateContent).Methods("POST")
	router.Handle("/content/generate", generate).Methods("POST")
	router.HandleFunc("/content/workspace/{workspaceId}", h.ListContent).Methods("GET")
	router.HandleFunc("/content/{id}", h.GetContent).Methods("GET")
	router.HandleFunc("/content/{id}", h.UpdateContent).Methods("PUT")
	router.HandleFunc("/content/{id}", h.DeleteContent).Methods("DELETE")
}

// CreateContent stores a piece of content in a workspace
func (h *ContentHandlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req content.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

// ListContent lists a workspace's content, newest first
func (h *ContentHandlers) ListContent(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "workspaceId")
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), middleware.Caller(r), workspaceID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, list, len(list))
}

// GetContent retrieves content by ID
func (h *ContentHandlers) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

// UpdateContent edits content
func (h *ContentHandlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req content.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), middleware.Caller(r), id, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

// DeleteContent deletes content
func (h *ContentHandlers) DeleteContent(w http.ResponseWriter, r *http.Request) {
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

// GenerateContent asks the text generator for a draft
func (h *ContentHandlers) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req content.GenerateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Generate(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
