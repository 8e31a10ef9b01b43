package handlers

import (
	"net/http"
	"strconv"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 500
)

// EventHandler handles HTTP requests related to auth events.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent auth events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	respondSuccess(w, http.StatusOK, "Events retrieved", envelope{"count": len(events), "events": events})
}
