package handlers

import (
	"net/http"
	"strings"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	ws "github.com/DEEKSHA240406/stress-management-sub001/internal/websocket"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler streams auth events to admin clients.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. allowedOrigins follows
// the CORS setting; "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || OriginAllowed(allowed, origin)
	}
}

// OriginAllowed reports whether origin is listed in allowed. "*" matches any origin.
func OriginAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Serve upgrades the connection and subscribes it to the event stream.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID())
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.TextMessage, ws.NewErrorMessage("event stream is shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
