package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkin/internal/analytics"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/logger"
)

// Handler exposes check-in progress figures over HTTP.
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// Routes mounts the analytics endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/events/{eventID}/checkins", h.EventCheckIns)
	r.Get("/organizer/checkins", h.OrganizerCheckIns)
}

// EventCheckIns returns the check-in progress for one event.
func (h *Handler) EventCheckIns(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		http.Error(w, "eventID is required", http.StatusBadRequest)
		return
	}

	stats, err := h.Service.GetEventCheckInStats(r.Context(), eventID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("API", fmt.Sprintf("Event check-in stats failed: %v", err))
		}
		http.Error(w, "Failed to load check-in stats", http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// OrganizerCheckIns returns per-event progress for the organizer in the
// bearer token.
func (h *Handler) OrganizerCheckIns(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}
	if actor.OrganizerID == "" {
		http.Error(w, "Token carries no organizer", http.StatusForbidden)
		return
	}

	stats, err := h.Service.GetOrganizerCheckInStats(r.Context(), actor.OrganizerID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("API", fmt.Sprintf("Organizer check-in stats failed: %v", err))
		}
		http.Error(w, "Failed to load check-in stats", http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
