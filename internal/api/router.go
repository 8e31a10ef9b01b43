package api

import (
	"net/http"
	"time"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/api/handlers"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/logger"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/services"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the index and docs endpoints.
const Version = "1.0.0"

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Auth        services.AuthServiceProvider
	Tokens      auth.TokenParser
	Events      services.EventServiceProvider
	Hub         *websocket.Hub
	Store       handlers.Pinger
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Environment string
	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)

	// Browsers reject "*" on credentialed responses, so the matched origin is
	// always echoed back, even when every origin is allowed.
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return handlers.OriginAllowed(deps.CORSOrigins, origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	systemHandler := handlers.NewSystemHandler(deps.Store, deps.Environment, Version)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.SecureCookies)
	eventHandler := handlers.NewEventHandler(deps.Events)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.CORSOrigins)

	r.NotFound(systemHandler.NotFound)
	r.MethodNotAllowed(systemHandler.MethodNotAllowed)

	// The event stream outlives any request timeout.
	r.With(auth.JWTMiddleware(deps.Tokens), auth.AdminOnly).
		Get("/api/admin/events/ws", wsHandler.Serve)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", systemHandler.Index)
		r.Get("/api/health", systemHandler.Health)
		r.Get("/api/docs", systemHandler.Docs)
		if deps.Gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
		}

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/verify", authHandler.Verify)
			r.Post("/logout", authHandler.Logout)

			r.With(auth.JWTMiddleware(deps.Tokens), auth.AdminOnly).
				Get("/users", authHandler.ListUsers)
		})

		r.With(auth.JWTMiddleware(deps.Tokens), auth.AdminOnly).
			Get("/api/admin/events", eventHandler.GetRecent)
	})

	return r
}
