package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/apikeys"
	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
)

// APIKeyHandlers handles the caller's provider API keys
type APIKeyHandlers struct {
	service *apikeys.Service
}

// NewAPIKeyHandlers creates a new APIKeyHandlers
func NewAPIKeyHandlers(service *apikeys.Service) *APIKeyHandlers {
	return &APIKeyHandlers{service: service}
}

// RegisterRoutes registers api key routes
func (h *APIKeyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api-keys", h.ListKeys).Methods("GET")
	router.HandleFunc("/api-keys", h.AddKey).Methods("POST")
	router.HandleFunc("/api-keys/generate", h.GenerateKey).Methods("POST")
	router.HandleFunc("/api-keys/verify", h.VerifyKey).Methods("POST")
	router.HandleFunc("/api-keys/{id}", h.DeleteKey).Methods("DELETE")
	router.HandleFunc("/api-keys/{id}/toggle", h.ToggleKey).Methods("PUT")
}

// ListKeys lists the caller's keys, masked
func (h *APIKeyHandlers) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.List(r.Context(), middleware.Caller(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, keys, len(keys))
}

// AddKey stores a new provider key
func (h *APIKeyHandlers) AddKey(w http.ResponseWriter, r *http.Request) {
	var req apikeys.AddRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	key, err := h.service.Add(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, key)
}

// DeleteKey deletes one of the caller's keys
func (h *APIKeyHandlers) DeleteKey(w http.ResponseWriter, r *http.Request) {
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

// ToggleKey flips a key between active and inactive
func (h *APIKeyHandlers) ToggleKey(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	key, err := h.service.Toggle(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, key)
}

type generateKeyRequest struct {
	Name string `json:"name"`
}

// GenerateKey returns a random key without storing it
func (h *APIKeyHandlers) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req generateKeyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	key, err := h.service.Generate(req.Name)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, key)
}

type verifyKeyRequest struct {
	Key string `json:"key"`
}

// VerifyKey checks a raw key against the provider
func (h *APIKeyHandlers) VerifyKey(w http.ResponseWriter, r *http.Request) {
	var req verifyKeyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Verify(r.Context(), req.Key)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
