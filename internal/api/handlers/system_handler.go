package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// Pinger checks that a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the index, documentation, health and fallback routes.
type SystemHandler struct {
	store       Pinger
	environment string
	version     string
	started     time.Time
	proc        *process.Process
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store Pinger, environment, version string) *SystemHandler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("Process stats unavailable")
	}
	return &SystemHandler{
		store:       store,
		environment: environment,
		version:     version,
		started:     time.Now(),
		proc:        proc,
	}
}

type endpointDoc struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Auth        string            `json:"auth,omitempty"`
	Description string            `json:"description"`
	Body        map[string]string `json:"body,omitempty"`
}

var endpointDocs = []endpointDoc{
	{Method: "GET", Path: "/api/health", Description: "Service health and uptime"},
	{Method: "GET", Path: "/api/docs", Description: "This document"},
	{Method: "GET", Path: "/metrics", Description: "Prometheus metrics"},
	{
		Method: "POST", Path: "/api/auth/register", Description: "Register a new user",
		Body: map[string]string{
			"username": "string, required (or email)",
			"password": "string, required, min length with upper, lower and digit",
			"name":     "string, optional",
		},
	},
	{
		Method: "POST", Path: "/api/auth/login", Description: "Log in and receive a token",
		Body: map[string]string{"username": "string, required (or email)", "password": "string, required"},
	},
	{Method: "GET", Path: "/api/auth/verify", Auth: "bearer", Description: "Verify a token and return its user"},
	{Method: "POST", Path: "/api/auth/logout", Description: "Clear the session cookie"},
	{Method: "GET", Path: "/api/auth/users", Auth: "admin", Description: "List registered users"},
	{Method: "GET", Path: "/api/admin/events", Auth: "admin", Description: "Recent auth events (?limit=N)"},
	{Method: "GET", Path: "/api/admin/events/ws", Auth: "admin", Description: "Live auth event stream (websocket)"},
}

// Index describes the API.
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, "Wellness Auth API", envelope{
		"version": h.version,
		"endpoints": map[string]string{
			"health":   "/api/health",
			"docs":     "/api/docs",
			"register": "/api/auth/register",
			"login":    "/api/auth/login",
			"verify":   "/api/auth/verify",
			"logout":   "/api/auth/logout",
		},
	})
}

// Docs lists every endpoint.
func (h *SystemHandler) Docs(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, "API documentation", envelope{
		"version":   h.version,
		"endpoints": endpointDocs,
	})
}

// Health reports uptime, process memory and store reachability.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, storeStatus, code := "ok", "ok", http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Health check: store unreachable")
			status, storeStatus, code = "degraded", "unreachable", http.StatusServiceUnavailable
		}
	}

	body := envelope{
		"success":     code == http.StatusOK,
		"message":     "Server is running",
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"environment": h.environment,
		"uptime":      time.Since(h.started).Seconds(),
		"store":       storeStatus,
		"goroutines":  runtime.NumGoroutine(),
	}
	if h.proc != nil {
		if mem, err := h.proc.MemoryInfoWithContext(r.Context()); err == nil {
			body["memory"] = envelope{"rss": mem.RSS, "vms": mem.VMS}
		}
	}
	respondJSON(w, code, body)
}

// NotFound answers unknown routes.
func (h *SystemHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, envelope{
		"success": false,
		"message": "Route not found",
		"path":    r.URL.Path,
		"method":  r.Method,
	})
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *SystemHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, envelope{
		"success": false,
		"message": "Method not allowed",
		"path":    r.URL.Path,
		"method":  r.Method,
	})
}
