package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/rs/zerolog/log"
)

// TokenCookieName is the cookie the login handler sets and the middleware reads.
const TokenCookieName = "token"

// UserClaimsKey is the context key for user claims.
type contextKey string

const UserClaimsKey = contextKey("userClaims")

// TokenParser validates a raw token string.
type TokenParser interface {
	Parse(tokenStr string) (*Claims, error)
}

// ClaimsFromContext returns the claims stored by JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if tokenStr, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(tokenStr)
		}
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// JWTMiddleware creates a middleware for protecting routes.
func JWTMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			claims, err := parser.Parse(tokenStr)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "Token expired"
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected auth token")
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// AdminOnly rejects requests whose claims do not carry the admin role.
// It must run after JWTMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if claims.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
