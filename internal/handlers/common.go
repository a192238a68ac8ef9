package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pair-collection-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondDomainError maps a service error to an HTTP status and sends it
func respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, err.Error(), statusForError(err))
}

// statusForError maps domain errors to HTTP status codes. Validation errors
// are 400, missing records 404, precondition violations 409; anything
// unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrURLRequired),
		errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrTextRequired),
		errors.Is(err, services.ErrTokenRequired),
		errors.Is(err, services.ErrBadStatus),
		errors.Is(err, services.ErrBadMode):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyPaired),
		errors.Is(err, services.ErrCreatorPaired),
		errors.Is(err, services.ErrOwnCode),
		errors.Is(err, services.ErrCodeUsed),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrNoCouple):
		return http.StatusConflict
	case errors.Is(err, services.ErrCodeGeneration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
