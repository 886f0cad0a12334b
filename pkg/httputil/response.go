package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/observability"
)

// Envelope is the body of every JSON response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes {success:true,data} with 200
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteCreated writes {success:true,data} with 201
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// WriteList writes {success:true,count,data} with 200
func WriteList(w http.ResponseWriter, data interface{}, count int) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}

// WriteSuccessMessage writes {success:true,message} with 200
func WriteSuccessMessage(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// WriteErrorMessage writes {success:false,error} with the given status code
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error (404)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// StatusFor maps an error kind to its HTTP status code
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden, apperr.KindQuotaExceeded:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError writes err using its kind for the status code. Internal
// errors are logged with their cause and reported with a generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstream {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	WriteErrorMessage(w, StatusFor(kind), apperr.PublicMessage(err))
}
