package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles HTTP requests for registration and sessions.
type AuthHandler struct {
	service      services.AuthServiceProvider
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie sets the Secure flag
// on the session cookie and should be true in production.
func NewAuthHandler(service services.AuthServiceProvider, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, secureCookie: secureCookie}
}

// RegisterPayload defines the structure for registration requests. Email is
// accepted as an alias for Username.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func pickUsername(username, email string) string {
	if username != "" {
		return username
	}
	return email
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	username := pickUsername(payload.Username, payload.Email)
	user, err := h.service.Register(r.Context(), username, payload.Password, services.WithName(payload.Name))
	if err != nil {
		status, _ := statusFromError(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("username", username).Msg("Failed to register user")
		}
		respondServiceError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, "User registered successfully", envelope{"user": user})
}

// Login handles user authentication and token issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	username := pickUsername(payload.Username, payload.Email)
	session, err := h.service.Login(r.Context(), username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthentication) {
			log.Warn().Str("username", username).Str("remote_addr", r.RemoteAddr).Msg("Failed authentication attempt")
		} else if status, _ := statusFromError(err); status == http.StatusInternalServerError {
			log.Error().Err(err).Str("username", username).Msg("Failed to log in user")
		}
		respondServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	respondSuccess(w, http.StatusOK, "Login successful", envelope{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

// Verify checks the caller's token and returns the user it belongs to.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	id, err := h.service.Verify(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if errors.Is(err, auth.ErrUserNotFound) {
		// Signed by us, but the user is gone.
		log.Warn().Str("user_id", id).Msg("Token subject not found")
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("Failed to load user for token")
		respondServiceError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Token is valid", envelope{"user": user})
}

// Logout clears the session cookie. Tokens are stateless and stay valid
// until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	respondSuccess(w, http.StatusOK, "Logout successful", nil)
}

// ListUsers returns every registered user. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Users retrieved", envelope{"count": len(users), "users": users})
}
