// Package handler provides HTTP handlers for the Doaqui API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/service"
	"github.com/doaqui/doaqui/internal/storage"
)

// errorResponse is the wire shape of every error.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a domain or service error to an HTTP status code.
// This is the single place where the error taxonomy meets HTTP.
func statusFor(err error) int {
	switch {
	// Missing required fields on create/update payloads.
	case errors.Is(err, domain.ErrMissingName),
		errors.Is(err, domain.ErrMissingDescription),
		errors.Is(err, domain.ErrMissingState),
		errors.Is(err, domain.ErrMissingPurchaseDate),
		errors.Is(err, domain.ErrMissingImage),
		errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, service.ErrMissingUserFields),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword):
		return http.StatusUnprocessableEntity

	// Malformed field values.
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrMissingAvailability),
		errors.Is(err, domain.ErrInvalidOwnerID),
		errors.Is(err, domain.ErrInvalidReceiverID),
		errors.Is(err, domain.ErrPartiesImmutable),
		errors.Is(err, domain.ErrProductNotAvailable):
		return http.StatusBadRequest

	// A malformed product id answers exactly like a missing product.
	case errors.Is(err, domain.ErrInvalidProductID),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, storage.ErrImageNotFound),
		errors.Is(err, storage.ErrInvalidImageID):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrOwnProduct),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrNotReserved),
		errors.Is(err, domain.ErrAlreadyConcluded):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the JSON error response for err.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, err, statusFor(err))
}

// writeErrorStatus writes the JSON error response with an explicit status.
// Used where an operation deviates from the default mapping.
func writeErrorStatus(w http.ResponseWriter, err error, status int) {
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals.
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
