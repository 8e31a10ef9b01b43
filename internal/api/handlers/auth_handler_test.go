package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/services"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/store"
)

func newAuthService(t *testing.T) *services.AuthService {
	t.Helper()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager([]byte("test-secret"), time.Hour, "wellness-auth")
	require.NoError(t, err)
	svc, err := services.NewAuthService(store.NewMemoryStore(), hasher, tokens, auth.PasswordPolicy{MinLength: 8})
	require.NoError(t, err)
	return svc
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestAuthHandler_Register(t *testing.T) {
	h := NewAuthHandler(newAuthService(t), false)

	rec, body := doJSON(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"Secret123!","name":"Alice"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, models.RoleStudent, user["role"])
	assert.NotEmpty(t, user["id"])
	assert.NotEmpty(t, user["createdAt"])
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	// The same username again conflicts.
	rec, body = doJSON(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"Secret123!"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "User already exists", body["message"])
}

func TestAuthHandler_RegisterWithEmailAlias(t *testing.T) {
	h := NewAuthHandler(newAuthService(t), false)

	rec, body := doJSON(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"email":"Student@Example.com","password":"Secret123!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "student@example.com", body["user"].(map[string]interface{})["username"])
}

func TestAuthHandler_RegisterBadRequests(t *testing.T) {
	h := NewAuthHandler(newAuthService(t), false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest},
		{"missing username", `{"password":"Secret123!"}`, http.StatusBadRequest},
		{"weak password", `{"username":"bob","password":"short"}`, http.StatusBadRequest},
		{"too large", `{"username":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, h.Register, http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAuthHandler_LoginAndVerify(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Register(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)
	h := NewAuthHandler(svc, true)

	rec, body := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"Secret123!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, body["expiresAt"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.TokenCookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.Verify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["user"].(map[string]interface{})["username"])
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.AddCookie(cookies[0])
		rec := httptest.NewRecorder()
		h.Verify(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Verify(rec, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		h.Verify(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid token")
	})
}

func TestAuthHandler_LoginFailuresLookTheSame(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Register(context.Background(), "alice", "Secret123!")
	require.NoError(t, err)
	h := NewAuthHandler(svc, false)

	wrongRec, wrongBody := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"Wrong1234!"}`)
	unknownRec, unknownBody := doJSON(t, h.Login, http.MethodPost, "/api/auth/login",
		`{"email":"nobody","password":"Secret123!"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongRec.Code)
	assert.Equal(t, wrongRec.Code, unknownRec.Code)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Empty(t, wrongRec.Result().Cookies())
}

func TestAuthHandler_Logout(t *testing.T) {
	h := NewAuthHandler(newAuthService(t), false)

	rec, body := doJSON(t, h.Logout, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.TokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

// stubAuthService returns fixed errors.
type stubAuthService struct {
	services.AuthServiceProvider
	err error
}

func (s stubAuthService) Register(context.Context, string, string, ...services.RegisterOption) (models.User, error) {
	return models.User{}, s.err
}

func (s stubAuthService) Login(context.Context, string, string) (services.Session, error) {
	return services.Session{}, s.err
}

func (s stubAuthService) Verify(context.Context, string) (string, error) {
	return "", s.err
}

func (s stubAuthService) ListUsers(context.Context) ([]models.User, error) {
	return nil, s.err
}

func TestAuthHandler_InternalErrorsAreGeneric(t *testing.T) {
	h := NewAuthHandler(stubAuthService{err: errors.New("pq: connection reset by peer")}, false)

	for name, handler := range map[string]http.HandlerFunc{
		"register": h.Register,
		"login":    h.Login,
		"users":    h.ListUsers,
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := doJSON(t, handler, http.MethodPost, "/", `{"username":"alice","password":"Secret123!"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "Internal server error", body["message"])
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", auth.ErrInvalidInput), http.StatusBadRequest},
		{auth.ErrDuplicateUser, http.StatusConflict},
		{auth.ErrAuthentication, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{auth.ErrUserNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, msg := statusFromError(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestAuthHandler_VerifyExpiredToken(t *testing.T) {
	h := NewAuthHandler(stubAuthService{err: auth.ErrExpiredToken}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token expired")
}

// deletedUserService accepts any token but knows no users.
type deletedUserService struct {
	stubAuthService
}

func (deletedUserService) Verify(context.Context, string) (string, error) {
	return "0b7f6a2e-5d1c-4f5e-9a51-3c2a1d9e8f00", nil
}

func (deletedUserService) GetUser(context.Context, string) (models.User, error) {
	return models.User{}, auth.ErrUserNotFound
}

func TestAuthHandler_VerifyUnknownSubject(t *testing.T) {
	h := NewAuthHandler(deletedUserService{}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token")
	assert.NotContains(t, rec.Body.String(), "User not found")
}
