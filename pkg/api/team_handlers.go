package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/inkwell/pkg/httputil"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/teams"
)

// TeamHandlers handles membership and invitation requests
type TeamHandlers struct {
	service *teams.Service
}

// NewTeamHandlers creates a new TeamHandlers
func NewTeamHandlers(service *teams.Service) *TeamHandlers {
	return &TeamHandlers{service: service}
}

// RegisterRoutes registers team routes
func (h *TeamHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.AddMember).Methods("POST")
	router.HandleFunc("/teams/invite", h.InviteMember).Methods("POST")
	router.HandleFunc("/teams/accept/{id}", h.AcceptInvitation).Methods("PUT")
	router.HandleFunc("/teams/workspace/{workspaceId}", h.ListMembers).Methods("GET")
	router.HandleFunc("/teams/{id}", h.GetMember).Methods("GET")
	router.HandleFunc("/teams/{id}", h.UpdateMemberRole).Methods("PUT")
	router.HandleFunc("/teams/{id}", h.RemoveMember).Methods("DELETE")
	router.HandleFunc("/teams/{id}/resend", h.ResendInvitation).Methods("POST")
}

type inviteResponse struct {
	Membership interface{} `json:"membership,omitempty"`
	InviteURL  string      `json:"invite_url"`
}

// writeInvite writes an invite or resend outcome, carrying the notifier warning
func writeInvite(w http.ResponseWriter, status int, result *teams.InviteResult) {
	body := inviteResponse{InviteURL: result.InviteURL}
	if result.Membership != nil {
		body.Membership = result.Membership
	}
	httputil.WriteJSON(w, status, httputil.Envelope{
		Success: true,
		Data:    body,
		Message: result.Message,
		Warning: result.Warning,
	})
}

// ListMembers lists every membership of a workspace
func (h *TeamHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "workspaceId")
	if !ok {
		return
	}

	members, err := h.service.List(r.Context(), middleware.Caller(r), workspaceID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, members, len(members))
}

// GetMember returns a membership or an invitation preview
func (h *TeamHandlers) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	member, err := h.service.Get(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

// InviteMember creates a pending invitation and notifies the invitee
func (h *TeamHandlers) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req teams.AddRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Invite(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	writeInvite(w, http.StatusCreated, result)
}

// AddMember adds an existing user as an accepted member
func (h *TeamHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	var req teams.AddRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	m, err := h.service.AddDirectly(r.Context(), middleware.Caller(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, m)
}

// AcceptInvitation binds a pending invitation to the caller
func (h *TeamHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.Accept(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, result.Message(), result.Membership)
}

type roleRequest struct {
	Role string `json:"role"`
}

// UpdateMemberRole changes the role of a membership
func (h *TeamHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	m, err := h.service.UpdateRole(r.Context(), middleware.Caller(r), id, req.Role)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

// RemoveMember deletes a membership. Unknown ids succeed.
func (h *TeamHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.service.Remove(r.Context(), middleware.Caller(r), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, struct{}{})
}

// ResendInvitation re-sends a pending invitation
func (h *TeamHandlers) ResendInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.Resend(r.Context(), middleware.Caller(r), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	writeInvite(w, http.StatusOK, result)
}
