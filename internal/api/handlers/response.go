package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// envelope is the JSON body of every response.
type envelope map[string]interface{}

func respondJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondSuccess(w http.ResponseWriter, status int, message string, fields envelope) {
	body := envelope{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{"success": false, "message": message})
}

// statusFromError maps service errors to an HTTP status and a client-safe message.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrDuplicateUser):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, auth.ErrAuthentication):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	status, message := statusFromError(err)
	respondError(w, status, message)
}

// decodeJSON reads a size-limited JSON body into dst and writes the error
// response itself when decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
