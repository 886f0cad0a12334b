// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Envelope
//
// Every JSON body has the same shape:
//
//	{"success": true, "data": {...}}
//	{"success": true, "count": 2, "data": [...]}
//	{"success": false, "error": "Workspace not found"}
//
// Helpers:
//
//	httputil.WriteSuccess(w, workspace)
//	httputil.WriteCreated(w, membership)
//	httputil.WriteList(w, items, len(items))
//
// Service errors carry an apperr.Kind which decides the status code:
//
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//
// Internal errors are logged with their cause and reported as "Server error".
//
// # Request Parsing
//
//	var req createWorkspaceRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Validation
//
//	err := httputil.Validate(
//		httputil.Required(req.Name, "Please provide a workspace name"),
//		httputil.MaxLength(req.Name, 50, "Name cannot be more than 50 characters"),
//	)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
