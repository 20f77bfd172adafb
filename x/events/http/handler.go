// Package http serves the recent-events feed used by off-chain indexers to
// catch up after a restart.
package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/clones-ai/factoryvault/server/api"
	"github.com/clones-ai/factoryvault/x/events"
)

const (
	routeRecentEvents = "/v1/events/recent"

	routeNameRecentEvents = "events_recent"

	defaultRecentLimit = 100
)

type Handler struct {
	bus *events.Bus
	log zerolog.Logger
}

func NewHandler(bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		bus: bus,
		log: log.With().Str("component", "events-http").Logger(),
	}
}

// RegisterMux binds gorilla/mux routes.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeRecentEvents, h.handleRecentEvents).
		Methods(http.MethodGet).
		Name(routeNameRecentEvents)
}

func (h *Handler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			apicommon.WriteError(w, r, http.StatusBadRequest, "bad_request", "limit: not a positive integer", nil)
			return
		}
		limit = parsed
	}

	recent := h.bus.Recent(limit)
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{
		"events":  recent,
		"count":   len(recent),
		"dropped": h.bus.Dropped(),
	})
}
